package model

import "time"

// DocumentState tracks a document through the two-store upload protocol.
// A row is PENDING between the metadata insert and the confirmed blob
// write, ACTIVE once both halves exist.
type DocumentState string

const (
	StatePending DocumentState = "PENDING"
	StateActive  DocumentState = "ACTIVE"
	StateDeleted DocumentState = "DELETED"
)

// Document is the relational record for one stored file. The binary
// content itself lives in the object store, keyed by ID.
// This is a pure domain model with no database-specific dependencies or tags.
type Document struct {
	ID          string        `json:"id"`
	ExternalID  string        `json:"external_id"`
	Name        string        `json:"name"`
	OwnerID     string        `json:"owner_id"`
	AccessGroup string        `json:"access_group,omitempty"`
	Extension   string        `json:"extension"`
	Size        int64         `json:"size"`
	Checksum    string        `json:"checksum"`
	State       DocumentState `json:"state"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}
