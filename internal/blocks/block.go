package blocks

// Block is one node of the analysis result graph returned by the OCR
// service. Blocks reference each other by id through typed relationships:
// LINE blocks point at their WORD children, KEY_VALUE_SET keys point at
// their paired value set, TABLE blocks point at their CELL children.
type Block struct {
	ID            string         `json:"Id"`
	BlockType     string         `json:"BlockType"`
	Text          string         `json:"Text,omitempty"`
	Confidence    *float64       `json:"Confidence,omitempty"`
	Page          int            `json:"Page,omitempty"`
	EntityTypes   []string       `json:"EntityTypes,omitempty"`
	RowIndex      int            `json:"RowIndex,omitempty"`
	ColumnIndex   int            `json:"ColumnIndex,omitempty"`
	Relationships []Relationship `json:"Relationships,omitempty"`
	Geometry      *Geometry      `json:"Geometry,omitempty"`
}

// Relationship is a typed edge to other blocks.
type Relationship struct {
	Type string   `json:"Type"`
	IDs  []string `json:"Ids"`
}

// Geometry carries the bounding box of a block on its page.
type Geometry struct {
	BoundingBox BoundingBox `json:"BoundingBox"`
}

// BoundingBox coordinates are fractions of the page dimensions.
type BoundingBox struct {
	Width  float64 `json:"Width"`
	Height float64 `json:"Height"`
	Left   float64 `json:"Left"`
	Top    float64 `json:"Top"`
}

// Block types emitted by the analysis service.
const (
	TypeLine        = "LINE"
	TypeWord        = "WORD"
	TypeKeyValueSet = "KEY_VALUE_SET"
	TypeTable       = "TABLE"
	TypeCell        = "CELL"
	TypeSignature   = "SIGNATURE"
)

// Relationship types.
const (
	RelChild = "CHILD"
	RelValue = "VALUE"
)

// Entity type markers on KEY_VALUE_SET blocks.
const (
	EntityKey   = "KEY"
	EntityValue = "VALUE"
)

// pageOf defaults missing page numbers to 1, the service's convention
// for single-page documents.
func pageOf(b Block) int {
	if b.Page == 0 {
		return 1
	}
	return b.Page
}

func hasEntityType(b Block, entityType string) bool {
	for _, et := range b.EntityTypes {
		if et == entityType {
			return true
		}
	}
	return false
}

func relationship(b Block, relType string) ([]string, bool) {
	for _, rel := range b.Relationships {
		if rel.Type == relType {
			return rel.IDs, true
		}
	}
	return nil, false
}
