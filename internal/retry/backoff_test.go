package retry

import (
	"testing"
	"time"
)

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		name    string
		attempt int
		base    time.Duration
		want    time.Duration
	}{
		{"first attempt", 0, time.Second, time.Second},
		{"second attempt", 1, time.Second, 2 * time.Second},
		{"third attempt", 2, time.Second, 4 * time.Second},
		{"fourth attempt", 3, time.Second, 8 * time.Second},
		{"negative attempt clamps to base", -1, time.Second, time.Second},
		{"capped at max", 10, time.Second, 30 * time.Second},
		{"overflow falls back to max", 62, time.Second, 30 * time.Second},
		{"small base", 2, 100 * time.Millisecond, 400 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExponentialBackoff(tt.attempt, tt.base); got != tt.want {
				t.Errorf("ExponentialBackoff(%d, %v) = %v, want %v", tt.attempt, tt.base, got, tt.want)
			}
		})
	}
}
