package extraction

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidExtraction indicates the model response failed structural
// validation. The caller recovers with an empty extraction.
var ErrInvalidExtraction = errors.New("extraction validation failed")

// codeFencePattern strips Markdown code-fence wrapping from model output.
var codeFencePattern = regexp.MustCompile("(?s)^```(?:json)?\\s*|\\s*```$")

// Validate parses and validates a raw model response.
//
// Rules, all of which short-circuit to ErrInvalidExtraction:
//   - top-level value is a JSON object with exactly the keys "entities"
//     and "relationships", both arrays;
//   - every entity is an object containing id, name, and type;
//   - every relationship is an object containing source, target, and
//     type, and both endpoints reference an entity id from this same
//     response; one dangling reference discards the whole extraction;
//   - relationship types are upper-cased before storage.
//
// Unexpected entity type values and entity ids that differ from the
// slug of their name are tolerated; each produces a warning in the
// returned slice.
func Validate(raw string) (Extraction, []string, error) {
	cleaned := strings.TrimSpace(codeFencePattern.ReplaceAllString(strings.TrimSpace(raw), ""))

	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &top); err != nil {
		return Extraction{}, nil, fmt.Errorf("%w: not a JSON object: %v", ErrInvalidExtraction, err)
	}

	entitiesRaw, ok := top["entities"]
	if !ok {
		return Extraction{}, nil, fmt.Errorf("%w: missing entities key", ErrInvalidExtraction)
	}
	relationshipsRaw, ok := top["relationships"]
	if !ok {
		return Extraction{}, nil, fmt.Errorf("%w: missing relationships key", ErrInvalidExtraction)
	}
	if len(top) != 2 {
		return Extraction{}, nil, fmt.Errorf("%w: unexpected top-level keys", ErrInvalidExtraction)
	}

	entities, warnings, err := validateEntities(entitiesRaw)
	if err != nil {
		return Extraction{}, nil, err
	}

	relationships, err := validateRelationships(relationshipsRaw, entities)
	if err != nil {
		return Extraction{}, nil, err
	}

	return Extraction{Entities: entities, Relationships: relationships}, warnings, nil
}

func validateEntities(raw json.RawMessage) ([]Entity, []string, error) {
	var items []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, nil, fmt.Errorf("%w: entities is not an array of objects: %v", ErrInvalidExtraction, err)
	}

	entities := make([]Entity, 0, len(items))
	var warnings []string

	for i, item := range items {
		entity := Entity{}
		for _, field := range []struct {
			key string
			dst *string
		}{
			{"id", &entity.ID},
			{"name", &entity.Name},
			{"type", &entity.Type},
		} {
			value, ok := item[field.key]
			if !ok {
				return nil, nil, fmt.Errorf("%w: entity %d missing %s", ErrInvalidExtraction, i, field.key)
			}
			if err := json.Unmarshal(value, field.dst); err != nil {
				return nil, nil, fmt.Errorf("%w: entity %d has non-string %s", ErrInvalidExtraction, i, field.key)
			}
		}

		switch entity.Type {
		case TypePerson, TypeOrganization, TypeLocation:
		default:
			warnings = append(warnings, fmt.Sprintf("unexpected entity type %q for %s", entity.Type, entity.ID))
		}

		if slug := Slug(entity.Name); entity.ID != slug {
			warnings = append(warnings, fmt.Sprintf("entity id %q is not the slug %q of name %q", entity.ID, slug, entity.Name))
		}

		entities = append(entities, entity)
	}

	return entities, warnings, nil
}

func validateRelationships(raw json.RawMessage, entities []Entity) ([]Relationship, error) {
	var items []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: relationships is not an array of objects: %v", ErrInvalidExtraction, err)
	}

	ids := make(map[string]struct{}, len(entities))
	for _, entity := range entities {
		ids[entity.ID] = struct{}{}
	}

	relationships := make([]Relationship, 0, len(items))
	for i, item := range items {
		rel := Relationship{}
		for _, field := range []struct {
			key string
			dst *string
		}{
			{"source", &rel.Source},
			{"target", &rel.Target},
			{"type", &rel.Type},
		} {
			value, ok := item[field.key]
			if !ok {
				return nil, fmt.Errorf("%w: relationship %d missing %s", ErrInvalidExtraction, i, field.key)
			}
			if err := json.Unmarshal(value, field.dst); err != nil {
				return nil, fmt.Errorf("%w: relationship %d has non-string %s", ErrInvalidExtraction, i, field.key)
			}
		}

		if _, ok := ids[rel.Source]; !ok {
			return nil, fmt.Errorf("%w: relationship %d references unknown source %q", ErrInvalidExtraction, i, rel.Source)
		}
		if _, ok := ids[rel.Target]; !ok {
			return nil, fmt.Errorf("%w: relationship %d references unknown target %q", ErrInvalidExtraction, i, rel.Target)
		}

		rel.Type = strings.ToUpper(rel.Type)
		relationships = append(relationships, rel)
	}

	return relationships, nil
}
