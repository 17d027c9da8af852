package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docstash-cli/internal/adapters/driven/config/file"
	ollamaembed "github.com/custodia-labs/docstash-cli/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/docstash-cli/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/docstash-cli/internal/adapters/driven/llm"
	ollamallm "github.com/custodia-labs/docstash-cli/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/docstash-cli/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/docstash-cli/internal/adapters/driven/source/pdf"
	"github.com/custodia-labs/docstash-cli/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/docstash-cli/internal/adapters/driven/tables/textgrid"
	"github.com/custodia-labs/docstash-cli/internal/adapters/driving/tui"
	"github.com/custodia-labs/docstash-cli/internal/core/ports/driven"
	"github.com/custodia-labs/docstash-cli/internal/core/services"
	"github.com/custodia-labs/docstash-cli/internal/logger"
	"github.com/custodia-labs/docstash-cli/internal/progress"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <pdf>...",
	Short: "Ingest PDF documents into the library",
	Long: `Ingests one or more PDF documents into the SQLite library, enriching
each with an AI-generated abstract, per-page summaries, figure
descriptions, detected tables and section embeddings.

Re-running on the same document is safe: existing artifacts are kept
and only missing enrichment is filled in.

Model roles (abstracter, summarizer, vision, embedder) come from the
configuration file; flags override the configured model names.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	addIngestFlags(ingestCmd)
	rootCmd.AddCommand(ingestCmd)
}

// addIngestFlags registers the flags shared by ingest and watch.
func addIngestFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("database", "d", "", "database path (default from config, then ~/.docstash/library.db)")
	cmd.Flags().String("abstracter", "", "model for whole-document abstracts")
	cmd.Flags().String("summarizer", "", "model for per-page summaries")
	cmd.Flags().String("vision-model", "", "model for figure descriptions")
	cmd.Flags().String("embedder", "", "model for section embeddings")
	cmd.Flags().Bool("no-tables", false, "skip table detection")
}

func runIngest(cmd *cobra.Command, args []string) error {
	for _, path := range args {
		if err := sniffPDF(path); err != nil {
			return err
		}
	}

	p, err := newPipeline(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	for _, path := range args {
		if err := p.ingestFile(cmd.Context(), path); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

// pipeline bundles the store, enrichment services and progress view
// for one ingest or watch invocation.
type pipeline struct {
	store        *sqlite.Store
	orchestrator *services.IngestOrchestrator
	view         *tui.View
	closers      []io.Closer
}

// newPipeline builds the ingest pipeline from the configuration file
// and the command's flags.
func newPipeline(cmd *cobra.Command) (*pipeline, error) {
	dbPath, err := databasePath(cmd)
	if err != nil {
		return nil, err
	}
	if err := sniffDatabase(dbPath); err != nil {
		return nil, err
	}

	store, err := sqlite.NewStore(dbPath)
	if err != nil {
		return nil, err
	}

	p := &pipeline{store: store}
	cfg := configStore.Config()

	abstracter, err := p.generative(cmd, cfg, cfg.Abstracter, "abstracter")
	if err != nil {
		p.Close()
		return nil, err
	}
	summarizer, err := p.generative(cmd, cfg, cfg.Summarizer, "summarizer")
	if err != nil {
		p.Close()
		return nil, err
	}
	visionary, err := p.generative(cmd, cfg, cfg.Vision, "vision-model")
	if err != nil {
		p.Close()
		return nil, err
	}
	embedder, err := p.embedding(cmd, cfg.Embedder)
	if err != nil {
		p.Close()
		return nil, err
	}

	var extractor driven.TableExtractor
	if noTables, _ := cmd.Flags().GetBool("no-tables"); !noTables {
		extractor = textgrid.NewExtractor()
	}

	p.view = tui.NewView(os.Stdout)
	tracker := progress.NewTracker(p.view)

	p.orchestrator = services.NewIngestOrchestrator(
		store, abstracter, summarizer, visionary, embedder, extractor, tracker)
	return p, nil
}

// generative builds one generative model role. An unconfigured role
// yields nil, which disables the corresponding stage.
func (p *pipeline) generative(cmd *cobra.Command, cfg file.Config, role file.ModelConfig, flag string) (driven.GenerativeService, error) {
	if override, _ := cmd.Flags().GetString(flag); override != "" {
		role.Model = override
	}
	if role.Provider == "" && role.Model == "" {
		return nil, nil
	}

	var (
		svc driven.GenerativeService
		err error
	)
	switch role.Provider {
	case "", "openai":
		svc, err = openaillm.NewService(openaillm.Config{
			APIKey:  role.APIKey,
			BaseURL: role.BaseURL,
			Model:   role.Model,
			Vision:  role.Vision,
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", flag, err)
		}
	case "ollama":
		svc = ollamallm.NewService(ollamallm.Config{
			BaseURL: role.BaseURL,
			Model:   role.Model,
			Vision:  role.Vision,
		})
	default:
		return nil, fmt.Errorf("%s: unknown provider %q", flag, role.Provider)
	}

	limited := llm.NewRateLimited(svc, llm.RateLimitConfig{
		RequestsPerSecond: cfg.Ingest.RequestsPerSecond,
		BurstSize:         cfg.Ingest.BurstSize,
	})
	p.closers = append(p.closers, limited)
	return limited, nil
}

// embedding builds the embedding service, nil when unconfigured.
func (p *pipeline) embedding(cmd *cobra.Command, role file.EmbedderConfig) (driven.EmbeddingService, error) {
	if override, _ := cmd.Flags().GetString("embedder"); override != "" {
		role.Model = override
	}
	if role.Provider == "" && role.Model == "" {
		return nil, nil
	}

	switch role.Provider {
	case "", "openai":
		svc, err := openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:     role.APIKey,
			BaseURL:    role.BaseURL,
			Model:      role.Model,
			Dimensions: role.Dimensions,
		})
		if err != nil {
			return nil, fmt.Errorf("embedder: %w", err)
		}
		p.closers = append(p.closers, svc)
		return svc, nil
	case "ollama":
		svc := ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:    role.BaseURL,
			Model:      role.Model,
			Dimensions: role.Dimensions,
		})
		p.closers = append(p.closers, svc)
		return svc, nil
	default:
		return nil, fmt.Errorf("embedder: unknown provider %q", role.Provider)
	}
}

// ingestFile runs the pipeline for one PDF file.
func (p *pipeline) ingestFile(ctx context.Context, path string) error {
	source, err := pdf.NewSource(path)
	if err != nil {
		return err
	}
	defer source.Close() //nolint:errcheck

	logger.Section("ingest " + path)
	return p.orchestrator.Ingest(ctx, source)
}

// Close releases the pipeline's services and store.
func (p *pipeline) Close() {
	if p.view != nil {
		p.view.Stop()
	}
	for _, c := range p.closers {
		c.Close() //nolint:errcheck
	}
	if p.store != nil {
		p.store.Close() //nolint:errcheck
	}
}
