// Package main implements the docrag CLI for ingesting PDF documents and
// querying them through vector, graph, or hybrid retrieval.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/chunker"
	"github.com/fyrsmithlabs/docrag/internal/config"
	"github.com/fyrsmithlabs/docrag/internal/cypherql"
	"github.com/fyrsmithlabs/docrag/internal/extraction"
	"github.com/fyrsmithlabs/docrag/internal/graphstore"
	"github.com/fyrsmithlabs/docrag/internal/llm"
	"github.com/fyrsmithlabs/docrag/internal/logging"
	"github.com/fyrsmithlabs/docrag/internal/pdftext"
	"github.com/fyrsmithlabs/docrag/internal/retriever"
	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
)

var (
	// configPath is the YAML config file; env vars override it either way.
	configPath string
	// mode selects the retrieval strategy for the invoked command.
	mode string
	// showEvidence prints the retrieved chunks and graph rows after the answer.
	showEvidence bool
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "docrag",
	Short: "Hybrid vector/graph retrieval over PDF documents",
	Long: `docrag ingests PDF documents into a Qdrant vector index and a Neo4j
knowledge graph, then answers questions against either backend or a
hybrid fusion of both.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&mode, "mode", "hybrid", "retrieval mode: vector, graph, or hybrid")
	queryCmd.Flags().BoolVar(&showEvidence, "show-evidence", false, "print retrieved chunks and graph rows")
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(deleteCmd)
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <file.pdf>...",
	Short: "Ingest PDF documents into the configured backends",
	Long: `Extract text from each PDF and store it in the backends the selected
mode uses: chunk embeddings in the vector index, extracted entities and
relationships in the knowledge graph, or both for hybrid.

Examples:
  docrag ingest report.pdf
  docrag --mode vector ingest a.pdf b.pdf`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Answer a question from the ingested corpus",
	Long: `Answer a question using the selected retrieval mode.

Examples:
  docrag query "Who founded TechCorp?"
  docrag --mode graph query "What is the relationship between Alice and TechCorp?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List ingested documents",
	Long: `List the documents known to the selected mode. Hybrid lists only
documents present in both backends.`,
	Args: cobra.NoArgs,
	RunE: runList,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <filename>...",
	Short: "Delete documents from the configured backends",
	Long: `Remove every trace of the named documents from the backends the
selected mode uses. Graph deletion also removes entities no longer
mentioned in any remaining document.

Examples:
  docrag delete report.pdf`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDelete,
}

// corpusRetriever is the operation surface shared by the three modes.
type corpusRetriever interface {
	ProcessAndStore(ctx context.Context, doc *pdftext.Document) (string, error)
	Query(ctx context.Context, question string) (retriever.Result, error)
	ListProcessedFiles(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, filename string) (string, error)
}

// app holds the wired dependency graph for one command invocation.
// Construction is fail-fast: an unreachable backend aborts the command
// before any operation runs.
type app struct {
	logger      *logging.Logger
	vectorStore *vectorstore.QdrantStore
	graphStore  *graphstore.Neo4jStore
	vector      *retriever.VectorRetriever
	graph       *retriever.GraphRetriever
	hybrid      *retriever.HybridRetriever
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	client, err := llm.NewOpenAIClient(llm.OpenAIConfig{
		APIKey:         cfg.OpenAI.APIKey.Value(),
		ChatModel:      cfg.OpenAI.ChatModel,
		EmbeddingModel: cfg.OpenAI.EmbeddingModel,
		BaseURL:        cfg.OpenAI.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing model client: %w", err)
	}

	a := &app{logger: logger}
	needVector := mode == "vector" || mode == "hybrid"
	needGraph := mode == "graph" || mode == "hybrid"
	if !needVector && !needGraph {
		return nil, fmt.Errorf("unknown mode %q: want vector, graph, or hybrid", mode)
	}

	opts := retriever.Options{
		TopK:              cfg.Retrieval.TopK,
		EmbedBatchSize:    cfg.Retrieval.EmbedBatchSize,
		DeleteSettleDelay: cfg.Retrieval.DeleteSettleDelay.Duration(),
	}

	if needVector {
		a.vectorStore, err = vectorstore.NewQdrantStore(ctx, vectorstore.Config{
			Host:           cfg.Qdrant.Host,
			Port:           cfg.Qdrant.Port,
			APIKey:         cfg.Qdrant.APIKey.Value(),
			Collection:     cfg.Qdrant.Collection,
			VectorSize:     cfg.Qdrant.VectorSize,
			UseTLS:         cfg.Qdrant.UseTLS,
			Timeout:        cfg.Qdrant.Timeout.Duration(),
			MaxMessageSize: cfg.Qdrant.MaxMessageSize,
		})
		if err != nil {
			a.close(ctx)
			return nil, fmt.Errorf("connecting to qdrant: %w", err)
		}
		ch, err := chunker.New(client, chunker.Config{
			MaxChunkSize:        cfg.Chunker.MaxChunkSize,
			MinChunkSize:        cfg.Chunker.MinChunkSize,
			SimilarityThreshold: cfg.Chunker.SimilarityThreshold,
		}, logger)
		if err != nil {
			a.close(ctx)
			return nil, fmt.Errorf("initializing chunker: %w", err)
		}
		a.vector = retriever.NewVectorRetriever(a.vectorStore, client, client, ch, opts, logger)
	}

	if needGraph {
		a.graphStore, err = graphstore.NewNeo4jStore(ctx, graphstore.Config{
			URI:      cfg.Neo4j.URI,
			Username: cfg.Neo4j.Username,
			Password: cfg.Neo4j.Password.Value(),
		}, logger)
		if err != nil {
			a.close(ctx)
			return nil, fmt.Errorf("connecting to neo4j: %w", err)
		}
		a.graph = retriever.NewGraphRetriever(
			a.graphStore,
			extraction.NewExtractor(client, logger),
			cypherql.NewTranslator(client, logger),
			client,
			logger,
		)
	}

	if mode == "hybrid" {
		a.hybrid = retriever.NewHybridRetriever(a.vector, a.graph, client, logger)
	}
	return a, nil
}

func (a *app) retrieverForMode() corpusRetriever {
	switch mode {
	case "vector":
		return a.vector
	case "graph":
		return a.graph
	default:
		return a.hybrid
	}
}

func (a *app) close(ctx context.Context) {
	if a.vectorStore != nil {
		if err := a.vectorStore.Close(); err != nil {
			a.logger.Warn(ctx, "closing qdrant client", zap.Error(err))
		}
	}
	if a.graphStore != nil {
		if err := a.graphStore.Close(ctx); err != nil {
			a.logger.Warn(ctx, "closing neo4j driver", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	r := a.retrieverForMode()
	for _, path := range args {
		doc, err := pdftext.Open(path)
		if err != nil {
			return fmt.Errorf("opening %s: %w", path, err)
		}
		filename, err := r.ProcessAndStore(ctx, doc)
		if err != nil {
			return fmt.Errorf("ingesting %s: %w", path, err)
		}
		fmt.Printf("Ingested %s\n", filename)
	}
	return nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	question := strings.Join(args, " ")
	result, err := a.retrieverForMode().Query(ctx, question)
	if err != nil {
		return err
	}

	fmt.Println(result.Answer)
	if showEvidence {
		for i, chunk := range result.Chunks {
			fmt.Printf("\n[chunk %d] %s\n", i+1, chunk)
		}
		for i, row := range result.Rows {
			fmt.Printf("\n[row %d] %v\n", i+1, row)
		}
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	files, err := a.retrieverForMode().ListProcessedFiles(ctx)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Println("No documents ingested.")
		return nil
	}
	for _, file := range files {
		fmt.Println(file)
	}
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	r := a.retrieverForMode()
	for _, filename := range args {
		status, err := r.Delete(ctx, filename)
		if err != nil {
			return err
		}
		fmt.Println(status)
	}
	return nil
}
