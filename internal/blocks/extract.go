package blocks

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Entity is a normalized key/value pair extracted from a form field.
type Entity struct {
	Type        string
	Value       string
	Confidence  float64
	Page        int
	BoundingBox *BoundingBox
}

// Signature is one detected signature mark.
type Signature struct {
	Confidence  float64
	Page        int
	BoundingBox *BoundingBox
}

// Table is a dense grid reconstructed from sparse cell coordinates.
type Table struct {
	Page       int
	Headers    []string
	Rows       [][]string
	Confidence float64
}

// entityTypeMap normalizes known medical form labels to canonical names.
// Unlisted labels fall through to snakeCase.
var entityTypeMap = map[string]string{
	"date of service":  "service_date",
	"dos":              "service_date",
	"patient name":     "patient_name",
	"patient":          "patient_name",
	"name":             "patient_name",
	"date of birth":    "birth_date",
	"dob":              "birth_date",
	"provider":         "provider_name",
	"physician":        "provider_name",
	"doctor":           "provider_name",
	"facility":         "facility_name",
	"diagnosis":        "diagnosis",
	"dx":               "diagnosis",
	"medications":      "medications",
	"meds":             "medications",
	"chief complaint":  "chief_complaint",
	"blood pressure":   "blood_pressure",
	"bp":               "blood_pressure",
	"heart rate":       "heart_rate",
	"hr":               "heart_rate",
	"temperature":      "temperature",
	"temp":             "temperature",
	"weight":           "weight",
	"height":           "height",
}

var nonWordRe = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeEntityType maps a raw form-field label to its canonical
// snake_case entity type.
func NormalizeEntityType(label string) string {
	key := strings.ToLower(strings.TrimSpace(label))
	if mapped, ok := entityTypeMap[key]; ok {
		return mapped
	}
	return snakeCase(key)
}

func snakeCase(s string) string {
	return strings.Trim(nonWordRe.ReplaceAllString(s, "_"), "_")
}

// Index builds the id lookup the relationship edges resolve through.
func Index(bs []Block) map[string]Block {
	idx := make(map[string]Block, len(bs))
	for _, b := range bs {
		idx[b.ID] = b
	}
	return idx
}

// TextOf resolves a block's text. A block with its own text wins;
// otherwise CHILD relationship ids are looked up and their texts joined
// with single spaces. Unresolvable or textless children are skipped, so
// a dangling reference yields nothing rather than an error.
func TextOf(b Block, idx map[string]Block) string {
	if b.Text != "" {
		return b.Text
	}
	ids, ok := relationship(b, RelChild)
	if !ok {
		return ""
	}
	var parts []string
	for _, id := range ids {
		child, ok := idx[id]
		if !ok || child.Text == "" {
			continue
		}
		parts = append(parts, child.Text)
	}
	return strings.Join(parts, " ")
}

// FormFields extracts the key/value pairs of every KEY_VALUE_SET key
// block. Later duplicates of the same key overwrite earlier ones.
func FormFields(bs []Block) map[string]string {
	idx := Index(bs)
	fields := make(map[string]string)
	for _, b := range bs {
		if b.BlockType != TypeKeyValueSet || !hasEntityType(b, EntityKey) {
			continue
		}
		valueIDs, ok := relationship(b, RelValue)
		if !ok {
			continue
		}
		key := TextOf(b, idx)
		var value string
		for _, id := range valueIDs {
			vb, ok := idx[id]
			if !ok {
				continue
			}
			if v := TextOf(vb, idx); v != "" {
				value = v
				break
			}
		}
		if key != "" && value != "" {
			fields[key] = value
		}
	}
	return fields
}

// Entities walks the same key/value pairs as FormFields but keeps page
// and geometry, and normalizes the key into a canonical entity type. The
// value block is found by scanning the block list for a member of the
// key's VALUE edge.
func Entities(bs []Block) []Entity {
	idx := Index(bs)
	var out []Entity
	for _, b := range bs {
		if b.BlockType != TypeKeyValueSet || !hasEntityType(b, EntityKey) {
			continue
		}
		valueIDs, ok := relationship(b, RelValue)
		if !ok {
			continue
		}
		var valueText string
		for _, candidate := range bs {
			if !containsID(valueIDs, candidate.ID) {
				continue
			}
			if v := TextOf(candidate, idx); v != "" {
				valueText = v
				break
			}
		}
		key := TextOf(b, idx)
		if key == "" || valueText == "" {
			continue
		}
		ent := Entity{
			Type:       NormalizeEntityType(key),
			Value:      valueText,
			Confidence: confidenceOf(b),
			Page:       pageOf(b),
		}
		if b.Geometry != nil {
			box := b.Geometry.BoundingBox
			ent.BoundingBox = &box
		}
		out = append(out, ent)
	}
	return out
}

// Signatures reports every SIGNATURE block.
func Signatures(bs []Block) []Signature {
	var out []Signature
	for _, b := range bs {
		if b.BlockType != TypeSignature {
			continue
		}
		sig := Signature{
			Confidence: confidenceOf(b),
			Page:       pageOf(b),
		}
		if b.Geometry != nil {
			box := b.Geometry.BoundingBox
			sig.BoundingBox = &box
		}
		out = append(out, sig)
	}
	return out
}

// Tables rebuilds a dense grid for each TABLE block from the sparse
// (row, column) coordinates of its cells. Row 1 is the header row;
// coordinates with no cell become empty strings.
func Tables(bs []Block) []Table {
	idx := Index(bs)
	var out []Table
	for _, tb := range bs {
		if tb.BlockType != TypeTable {
			continue
		}
		cells := make(map[string]Block)
		maxRow, maxCol := 0, 0
		for _, cb := range bs {
			if cb.BlockType != TypeCell || !referencesBlock(cb, tb.ID) {
				continue
			}
			cells[fmt.Sprintf("%d-%d", cb.RowIndex, cb.ColumnIndex)] = cb
			if cb.RowIndex > maxRow {
				maxRow = cb.RowIndex
			}
			if cb.ColumnIndex > maxCol {
				maxCol = cb.ColumnIndex
			}
		}
		if maxRow == 0 || maxCol == 0 {
			continue
		}
		table := Table{Page: pageOf(tb), Confidence: confidenceOf(tb)}
		for row := 1; row <= maxRow; row++ {
			line := make([]string, maxCol)
			for col := 1; col <= maxCol; col++ {
				if cb, ok := cells[fmt.Sprintf("%d-%d", row, col)]; ok {
					line[col-1] = TextOf(cb, idx)
				}
			}
			if row == 1 {
				table.Headers = line
			} else {
				table.Rows = append(table.Rows, line)
			}
		}
		out = append(out, table)
	}
	return out
}

// PageText groups LINE blocks by page and joins each page's line texts
// with single spaces, in the order the service returned them.
func PageText(bs []Block) map[int]string {
	idx := Index(bs)
	pages := make(map[int][]string)
	for _, b := range bs {
		if b.BlockType != TypeLine {
			continue
		}
		if text := TextOf(b, idx); text != "" {
			page := pageOf(b)
			pages[page] = append(pages[page], text)
		}
	}
	out := make(map[int]string, len(pages))
	for page, lines := range pages {
		out[page] = strings.Join(lines, " ")
	}
	return out
}

// FullText joins page texts in ascending page order, pages separated by
// a blank line.
func FullText(pages map[int]string) string {
	nums := make([]int, 0, len(pages))
	for page := range pages {
		nums = append(nums, page)
	}
	sort.Ints(nums)
	parts := make([]string, 0, len(nums))
	for _, page := range nums {
		parts = append(parts, pages[page])
	}
	return strings.TrimSpace(strings.Join(parts, "\n\n"))
}

// AggregateConfidence is the arithmetic mean over blocks that carry a
// confidence score. Blocks without one count toward neither numerator
// nor denominator; a fully unscored result yields 0.
func AggregateConfidence(bs []Block) float64 {
	var sum float64
	var n int
	for _, b := range bs {
		if b.Confidence == nil {
			continue
		}
		sum += *b.Confidence
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// MaxPage is the highest page number seen across all blocks.
func MaxPage(bs []Block) int {
	max := 0
	for _, b := range bs {
		if p := pageOf(b); p > max {
			max = p
		}
	}
	return max
}

func confidenceOf(b Block) float64 {
	if b.Confidence == nil {
		return 0
	}
	return *b.Confidence
}

func containsID(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func referencesBlock(b Block, id string) bool {
	for _, rel := range b.Relationships {
		if containsID(rel.IDs, id) {
			return true
		}
	}
	return false
}
