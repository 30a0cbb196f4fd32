package store

import "testing"

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain key passes through", "claim.pdf", "claim.pdf"},
		{"percent escaped", "100%_report.pdf", `100\%\_report.pdf`},
		{"underscore escaped", "lab_results.pdf", `lab\_results.pdf`},
		{"backslash escaped first", `dir\file%.pdf`, `dir\\file\%.pdf`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := escapeLike(tt.in); got != tt.want {
				t.Errorf("escapeLike(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
