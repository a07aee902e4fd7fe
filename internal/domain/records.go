package domain

import (
	"slices"
	"time"
)

// Interaction records a meeting or touchpoint involving one or more entities.
// EntityRefs is never empty in storage: removing the last ref deletes the record.
type Interaction struct {
	Syncable
	Type          string    `json:"type"`
	Date          time.Time `json:"date"`
	EntityRefs    []string  `json:"entity_refs"`
	Location      string    `json:"location,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	CatchupDone   bool      `json:"catchup_done,omitzero"`
	OwnerID       string    `json:"owner_id"`
	InteractorUID string    `json:"interactor_uid,omitempty"`
}

// SharePack offers a set of entities from a sender to a recipient.
// Confirmed only moves from false to true. EntityIDs is never empty in storage.
type SharePack struct {
	Syncable
	SenderID    string   `json:"sender_id"`
	RecipientID string   `json:"recipient_id"`
	EntityIDs   []string `json:"entity_ids"`
	Confirmed   bool     `json:"confirmed"`
}

// Bit is a short note attached to an entity. Only its author may delete it.
type Bit struct {
	Syncable
	EntityID   string `json:"entity_id"`
	Text       string `json:"text"`
	AuthorID   string `json:"author_id"`
	ShowAuthor bool   `json:"show_author"`
}

// RemoveRef drops id from refs and reports whether the slice would become empty,
// in which case the owning record should be deleted instead of updated.
func RemoveRef(refs []string, id string) (remaining []string, becomesEmpty bool) {
	remaining = slices.DeleteFunc(slices.Clone(refs), func(r string) bool { return r == id })
	return remaining, len(remaining) == 0
}
