package model

// LineType enumerates the structural kinds of parsed content blocks.
type LineType string

const (
	LineHeader    LineType = "header"
	LineParagraph LineType = "paragraph"
	LineCode      LineType = "code"
	LineImage     LineType = "image"
	LineTable     LineType = "table"
	LineList      LineType = "list"
)

// Line is one positioned fragment of a document's parsed content.
// Position is a real-number sort key: inserting between two existing
// lines only needs a value strictly between theirs, no renumbering.
// Position ties are broken by BlockID, which is unique per document.
type Line struct {
	ID         string   `json:"id"`
	DocumentID string   `json:"document_id"`
	BlockID    string   `json:"block_id"`
	Position   float64  `json:"position"`
	Type       LineType `json:"type"`
	Content    string   `json:"content"`
}
