package extraction

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/docrag/internal/llm"
	"github.com/fyrsmithlabs/docrag/internal/logging"
	"go.uber.org/zap"
)

const (
	extractionSystemPrompt = "You are a helpful assistant that extracts entities and relationships from text in JSON format."

	extractionMaxTokens = 1000

	// extractionPromptTemplate fixes the output schema and vocabulary the
	// validator expects. The worked examples anchor the id slugging and
	// the FOUNDED emphasis recovers founding relations models tend to
	// drop.
	extractionPromptTemplate = `Extract key entities (e.g., people, organizations, locations) and their relationships from the following text. Return a JSON list of entities and relationships in this format:

{
  "entities": [{"id": "unique_id", "name": "entity_name", "type": "entity_type"}],
  "relationships": [{"source": "source_id", "target": "target_id", "type": "relationship_type"}]
}

Entities should include people (type: "Person"), organizations (type: "Organization"), and locations (type: "Location"). Relationships should describe connections like WORKS_FOR (e.g., a person works for an organization), HEADQUARTERED_IN (e.g., an organization is located in a city), FOUNDED (e.g., a person founded an organization), or COLLABORATED_WITH (e.g., two people collaborated). Ensure relationship types are in uppercase (e.g., WORKS_FOR, FOUNDED). Ensure IDs are unique, lowercase, and use underscores instead of spaces (e.g., "alice_johnson"). If no entities or relationships are found, return empty lists. Pay special attention to identifying founding relationships (e.g., "Founded by Alice Johnson" should result in a FOUNDED relationship).

Examples:
Text: "Alice Johnson is the CEO of TechCorp, which is headquartered in San Francisco. TechCorp was founded by Alice Johnson."
Output:
{
  "entities": [
    {"id": "alice_johnson", "name": "Alice Johnson", "type": "Person"},
    {"id": "techcorp", "name": "TechCorp", "type": "Organization"},
    {"id": "san_francisco", "name": "San Francisco", "type": "Location"}
  ],
  "relationships": [
    {"source": "alice_johnson", "target": "techcorp", "type": "WORKS_FOR"},
    {"source": "alice_johnson", "target": "techcorp", "type": "FOUNDED"},
    {"source": "techcorp", "target": "san_francisco", "type": "HEADQUARTERED_IN"}
  ]
}

Text: "TechCorp was founded in 2015."
Output:
{
  "entities": [
    {"id": "techcorp", "name": "TechCorp", "type": "Organization"}
  ],
  "relationships": []
}

Text: %s

Output: `
)

// Extractor prompts a generative model for the entity/relationship graph
// of a text and validates the response.
type Extractor struct {
	model  llm.ChatModel
	logger *logging.Logger
}

// NewExtractor creates an Extractor.
func NewExtractor(model llm.ChatModel, logger *logging.Logger) *Extractor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Extractor{
		model:  model,
		logger: logger.Named("extraction"),
	}
}

// Extract returns the validated entity/relationship graph for the text.
//
// Every failure mode (model call failure, malformed JSON, structural
// defects, dangling relationship endpoints) is recovered locally as the
// empty extraction and logged, so ingestion continues with zero graph
// contribution rather than aborting.
func (e *Extractor) Extract(ctx context.Context, text string) Extraction {
	raw, err := e.model.Complete(ctx, llm.CompletionRequest{
		System:    extractionSystemPrompt,
		Prompt:    fmt.Sprintf(extractionPromptTemplate, text),
		MaxTokens: extractionMaxTokens,
	})
	if err != nil {
		e.logger.Error(ctx, "extraction model call failed", zap.Error(err))
		return Extraction{}
	}

	result, warnings, err := Validate(raw)
	if err != nil {
		e.logger.Error(ctx, "extraction response rejected", zap.Error(err))
		return Extraction{}
	}
	for _, warning := range warnings {
		e.logger.Warn(ctx, "extraction warning", zap.String("warning", warning))
	}

	e.logger.Info(ctx, "extracted graph data",
		zap.Int("entities", len(result.Entities)),
		zap.Int("relationships", len(result.Relationships)),
	)
	return result
}
