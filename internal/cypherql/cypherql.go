// Package cypherql converts natural-language questions into validated
// Cypher queries via a generative model.
//
// Validation is a syntactic approximation, not a grammar: it extracts the
// set of identifiers projected by the RETURN clause and the set of
// identifiers bound in the MATCH portion, then requires the first to be a
// subset of the second. Known to produce occasional false positives and
// negatives on exotic queries; generated queries are simple enough in
// practice that the check catches the common failure (projecting a
// variable the model never bound) before anything reaches the database.
package cypherql

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/docrag/internal/llm"
	"github.com/fyrsmithlabs/docrag/internal/logging"
	"go.uber.org/zap"
)

// ErrInvalidQuery indicates a generated query failed validation and was
// never executed.
var ErrInvalidQuery = errors.New("invalid cypher query")

// allowedLeadingKeywords are the permitted first keywords of a generated
// query.
var allowedLeadingKeywords = []string{"MATCH", "WITH", "MERGE", "CREATE", "RETURN"}

// identifierStoplist holds structural tokens excluded by the fallback
// bound-identifier pass.
var identifierStoplist = map[string]struct{}{
	"match":        {},
	"optional":     {},
	"related":      {},
	"mentioned_in": {},
	"entity":       {},
	"document":     {},
	"name":         {},
	"where":        {},
	"contains":     {},
}

var (
	codeFencePattern  = regexp.MustCompile("(?s)^```(?:cypher)?\\s*|\\s*```$")
	identifierPattern = regexp.MustCompile(`[a-zA-Z_]\w*`)
)

const (
	cypherSystemPrompt = "You are a helpful assistant that generates Cypher queries for a Neo4j database."

	cypherMaxTokens = 150

	cypherPromptTemplate = `Convert the following question into a valid Cypher query to retrieve relevant entities and relationships from a Neo4j database. The database has Entity nodes (with id, name, type) and Document nodes (with id, filename), connected by MENTIONED_IN relationships, and Entity nodes connected by RELATED relationships with a 'type' property (e.g., WORKS_FOR, HEADQUARTERED_IN). Return a single Cypher query without using UNION. If a relationship is queried, assign it to a variable (e.g., [r:RELATED]) and use it in the RETURN clause (e.g., type(r) AS relationshipType). Ensure all variables in the RETURN clause are defined in the MATCH clause. For entity names in the question, use a CONTAINS condition to match partial names (e.g., for 'Alice', use name CONTAINS 'Alice' to match 'Alice Johnson'). For questions asking about the relationship between two entities, focus on the direct relationship between them and return only the relationship type. Return only the Cypher query text, without any Markdown, code blocks, or prefixes like '` + "```cypher" + `'.

Examples:
Question: "What is the relationship between Alice and TechCorp?"
Cypher Query:
MATCH (e:Entity)-[r:RELATED]->(t:Entity {name: 'TechCorp'})
WHERE e.name CONTAINS 'Alice'
RETURN type(r) AS relationshipType

Question: "Who works for TechCorp?"
Cypher Query:
MATCH (e:Entity)-[r:RELATED {type: 'WORKS_FOR'}]->(t:Entity {name: 'TechCorp'})
RETURN e.name AS entityName

Question: %s

Cypher Query: `
)

// Translator turns questions into validated Cypher queries.
type Translator struct {
	model  llm.ChatModel
	logger *logging.Logger
}

// NewTranslator creates a Translator.
func NewTranslator(model llm.ChatModel, logger *logging.Logger) *Translator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Translator{
		model:  model,
		logger: logger.Named("cypherql"),
	}
}

// Translate generates a Cypher query for the question and validates it.
// The returned query is safe to execute only in the heuristic sense
// documented on Validate; a validation failure returns ErrInvalidQuery
// and the query is never executed.
func (t *Translator) Translate(ctx context.Context, question string) (string, error) {
	raw, err := t.model.Complete(ctx, llm.CompletionRequest{
		System:    cypherSystemPrompt,
		Prompt:    fmt.Sprintf(cypherPromptTemplate, question),
		MaxTokens: cypherMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("generating cypher: %w", err)
	}

	query := strings.TrimSpace(codeFencePattern.ReplaceAllString(strings.TrimSpace(raw), ""))
	t.logger.Debug(ctx, "generated cypher query", zap.String("query", query))

	if err := Validate(query); err != nil {
		return "", err
	}
	return query, nil
}

// Validate rejects malformed or suspicious generated queries.
func Validate(query string) error {
	if query == "" {
		return fmt.Errorf("%w: empty query", ErrInvalidQuery)
	}

	upper := strings.ToUpper(query)
	allowed := false
	for _, keyword := range allowedLeadingKeywords {
		if strings.HasPrefix(upper, keyword) {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: query must start with one of %s", ErrInvalidQuery, strings.Join(allowedLeadingKeywords, ", "))
	}

	returnIdx := strings.Index(upper, "RETURN")
	if returnIdx < 0 {
		// Nothing projected, nothing to cross-check.
		return nil
	}

	projected := projectedIdentifiers(query[returnIdx:])
	bound := boundIdentifiers(query[:returnIdx])

	var undefined []string
	for identifier := range projected {
		if _, ok := bound[identifier]; !ok {
			undefined = append(undefined, identifier)
		}
	}
	if len(undefined) > 0 {
		sort.Strings(undefined)
		return fmt.Errorf("%w: undefined variables in RETURN clause: %s", ErrInvalidQuery, strings.Join(undefined, ", "))
	}
	return nil
}

// projectedIdentifiers parses the RETURN clause into the set of base
// identifiers it projects. Handles aliasing ("x AS y" projects x),
// relationship type accessors ("type(r)" projects r), and dotted property
// access ("e.name" projects e).
func projectedIdentifiers(returnClause string) map[string]struct{} {
	clause := strings.ToLower(returnClause)
	projected := make(map[string]struct{})

	for _, part := range strings.Split(clause, ",") {
		part = strings.TrimSpace(strings.Replace(part, "return", "", 1))
		if part == "" {
			continue
		}

		if idx := strings.Index(part, " as "); idx >= 0 {
			part = strings.TrimSpace(part[:idx])
		}

		switch {
		case strings.HasPrefix(part, "type("):
			if end := strings.Index(part, ")"); end > len("type(") {
				part = part[len("type("):end]
			}
		case strings.Contains(part, "."):
			part = part[:strings.Index(part, ".")]
		}

		part = strings.TrimSpace(part)
		if part == "" || part == "type" || part == "as" {
			continue
		}
		if identifierPattern.FindString(part) == part {
			projected[part] = struct{}{}
		}
	}

	return projected
}

// boundIdentifiers scans the matching portion of the query for variable
// bindings. A first pass collects identifiers adjacent to label markers,
// property braces, relationship arrows, or closing parens; a fallback
// pass collects any remaining bare identifier outside the structural
// stoplist.
func boundIdentifiers(matchClause string) map[string]struct{} {
	clause := strings.ToLower(matchClause)
	bound := make(map[string]struct{})

	for _, loc := range identifierPattern.FindAllStringIndex(clause, -1) {
		identifier := clause[loc[0]:loc[1]]

		rest := strings.TrimLeft(clause[loc[1]:], " \t\n")
		if rest != "" {
			switch rest[0] {
			case ':', '{', '-', ')':
				bound[identifier] = struct{}{}
				continue
			}
		}

		if _, stop := identifierStoplist[identifier]; !stop {
			bound[identifier] = struct{}{}
		}
	}

	return bound
}
