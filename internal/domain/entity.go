// Package domain defines the documents of the relationship graph.
package domain

import "slices"

// EntityType classifies an entity.
type EntityType string

const (
	EntityPerson       EntityType = "person"
	EntityOrganization EntityType = "organization"
	EntityCommunity    EntityType = "community"
	EntityGroup        EntityType = "group"
	EntityOther        EntityType = "other"
)

// EntityTypes lists every valid type in display order.
var EntityTypes = []EntityType{EntityPerson, EntityOrganization, EntityCommunity, EntityGroup, EntityOther}

// ParseEntityType returns the matching type, or EntityPerson for empty or unknown input.
func ParseEntityType(s string) EntityType {
	t := EntityType(s)
	if slices.Contains(EntityTypes, t) {
		return t
	}
	return EntityPerson
}

// Valid reports whether t is a known entity type.
func (t EntityType) Valid() bool {
	return slices.Contains(EntityTypes, t)
}

// Entity is a node of the graph: a person, organization, community, group or other.
// OwnerID never changes after creation. ViewerIDs only grows, through confirmed share packs.
type Entity struct {
	Syncable
	Type              EntityType  `json:"type"`
	Name              string      `json:"name"`
	Info              string      `json:"info,omitempty"`
	PhotoURL          string      `json:"photo_url,omitempty"`
	OwnerID           string      `json:"owner_id"`
	ViewerIDs         []string    `json:"viewer_ids,omitempty"`
	Tags              TagRefs     `json:"tags,omitempty"`
	Relations         []string    `json:"relations,omitempty"`
	Contact           Contact     `json:"contact,omitzero"`
	Addresses         []Address   `json:"addresses,omitempty"`
	Dates             []DateEntry `json:"dates,omitempty"`
	CatchupTargetDays int         `json:"catchup_target_days,omitzero"`
}

// CanView reports whether userID owns the entity or has been granted view access.
func (e *Entity) CanView(userID string) bool {
	return e.OwnerID == userID || slices.Contains(e.ViewerIDs, userID)
}

// IsOwnedBy reports whether userID owns the entity.
func (e *Entity) IsOwnedBy(userID string) bool {
	return e.OwnerID == userID
}

// AddViewer grants view access. Returns false if userID already had it or owns the entity.
func (e *Entity) AddViewer(userID string) bool {
	if e.OwnerID == userID || slices.Contains(e.ViewerIDs, userID) {
		return false
	}
	e.ViewerIDs = append(e.ViewerIDs, userID)
	return true
}

// RemoveRelation drops every occurrence of targetID from Relations.
// Returns true if anything was removed.
func (e *Entity) RemoveRelation(targetID string) bool {
	n := len(e.Relations)
	e.Relations = slices.DeleteFunc(e.Relations, func(id string) bool { return id == targetID })
	return len(e.Relations) != n
}

// Phone is an E.164 number with an optional label.
type Phone struct {
	E164  string `json:"e164"`
	Label string `json:"label,omitempty"`
}

// Email is an address with an optional label.
type Email struct {
	Address string `json:"address"`
	Label   string `json:"label,omitempty"`
}

// Link is a labelled URL (Instagram, LinkedIn, websites).
type Link struct {
	Header string `json:"header,omitempty"`
	URL    string `json:"url"`
}

// Note is a free-form contact method.
type Note struct {
	Text string `json:"text"`
}

// Contact groups the ways of reaching an entity.
type Contact struct {
	Phones    []Phone `json:"phones,omitempty"`
	Emails    []Email `json:"emails,omitempty"`
	Instagram []Link  `json:"instagram,omitempty"`
	LinkedIn  []Link  `json:"linkedin,omitempty"`
	URLs      []Link  `json:"urls,omitempty"`
	Other     []Note  `json:"other,omitempty"`
}

// IsZero reports whether no contact method is set.
func (c Contact) IsZero() bool {
	return len(c.Phones) == 0 && len(c.Emails) == 0 && len(c.Instagram) == 0 &&
		len(c.LinkedIn) == 0 && len(c.URLs) == 0 && len(c.Other) == 0
}

// Address is a geocoded place.
type Address struct {
	Formatted string  `json:"formatted"`
	PlaceID   string  `json:"place_id,omitempty"`
	Lat       float64 `json:"lat,omitzero"`
	Lng       float64 `json:"lng,omitzero"`
	Label     string  `json:"label,omitempty"`
}

// DateEntry is a labelled calendar date in YYYY-MM-DD form.
type DateEntry struct {
	Label string `json:"label"`
	Date  string `json:"date"`
}
