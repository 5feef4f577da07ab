// Package extraction turns raw document text into a typed entity and
// relationship graph by prompting a generative model and strictly
// validating its JSON output.
//
// The model is a black box: its output is never trusted past the
// validator. Any structural defect discards the entire extraction
// (all-or-nothing), which keeps dangling relationship endpoints out of
// the graph store.
package extraction

import "strings"

// Entity types the prompt instructs the model to use. Other values are
// tolerated with a warning rather than rejected.
const (
	TypePerson       = "Person"
	TypeOrganization = "Organization"
	TypeLocation     = "Location"
)

// Entity is a named real-world object extracted from text.
type Entity struct {
	// ID is the deterministic slug identity: lowercase, underscores for
	// spaces. The same name always yields the same ID, so mentions merge
	// across documents.
	ID string `json:"id"`

	// Name is the display name.
	Name string `json:"name"`

	// Type is one of Person, Organization, Location.
	Type string `json:"type"`
}

// Relationship is a directed, typed edge between two entities.
type Relationship struct {
	// Source and Target reference Entity IDs from the same extraction.
	Source string `json:"source"`
	Target string `json:"target"`

	// Type is a free-form uppercase token, e.g. WORKS_FOR.
	Type string `json:"type"`
}

// Extraction is a validated entity/relationship set. The zero value is
// the empty extraction returned for every rejected model response.
type Extraction struct {
	Entities      []Entity       `json:"entities"`
	Relationships []Relationship `json:"relationships"`
}

// Empty reports whether the extraction carries no graph data.
func (e Extraction) Empty() bool {
	return len(e.Entities) == 0 && len(e.Relationships) == 0
}

// Slug derives the deterministic entity ID for a display name.
func Slug(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}
