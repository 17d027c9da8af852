package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/custodia-labs/docstash-cli/internal/core/domain"
	"github.com/custodia-labs/docstash-cli/internal/core/ports/driven"
	"github.com/custodia-labs/docstash-cli/internal/core/ports/driving"
	"github.com/custodia-labs/docstash-cli/internal/logger"
	"github.com/custodia-labs/docstash-cli/internal/progress"
)

// AbstractPageCount is how many leading pages feed the abstracting
// stage, rendered as one sub-document.
const AbstractPageCount = 10

// Ensure IngestOrchestrator implements the interface.
var _ driving.Ingestor = (*IngestOrchestrator)(nil)

// IngestOrchestrator sequences the enrichment stages per document and
// per page, enforces their dependency order, commits transactionally
// per page, and continues past per-artifact failures.
//
// The optional collaborators may be nil; a nil collaborator disables
// the corresponding stage, writing no placeholder values. Pages are
// processed strictly in document order because the gist context window
// is an ordered, stateful, per-document sequence.
type IngestOrchestrator struct {
	store      driven.ArtifactStore
	abstracter driven.GenerativeService
	summarizer driven.GenerativeService
	visionary  driven.GenerativeService
	embedder   driven.EmbeddingService
	tables     driven.TableExtractor
	tracker    *progress.Tracker
	windowSize int

	// Status tracking
	mu     sync.RWMutex
	active map[string]*driving.IngestStatus
}

// NewIngestOrchestrator creates an orchestrator over the given store.
// abstracter, summarizer, visionary, embedder and tables are optional -
// pass nil to disable the corresponding stage. tracker may be nil for
// headless operation.
func NewIngestOrchestrator(
	store driven.ArtifactStore,
	abstracter driven.GenerativeService,
	summarizer driven.GenerativeService,
	visionary driven.GenerativeService,
	embedder driven.EmbeddingService,
	tables driven.TableExtractor,
	tracker *progress.Tracker,
) *IngestOrchestrator {
	if tracker == nil {
		tracker = progress.NewTracker(nil)
	}
	return &IngestOrchestrator{
		store:      store,
		abstracter: abstracter,
		summarizer: summarizer,
		visionary:  visionary,
		embedder:   embedder,
		tables:     tables,
		tracker:    tracker,
		windowSize: DefaultWindowSize,
	}
}

// Status returns the current status for a document title, or nil when
// no run is active for it.
func (o *IngestOrchestrator) Status(title string) *driving.IngestStatus {
	o.mu.RLock()
	defer o.mu.RUnlock()
	status, ok := o.active[title]
	if !ok {
		return nil
	}
	copied := *status
	return &copied
}

func (o *IngestOrchestrator) setStatus(status *driving.IngestStatus) {
	o.mu.Lock()
	if o.active == nil {
		o.active = make(map[string]*driving.IngestStatus)
	}
	o.active[status.Title] = status
	o.mu.Unlock()
}

func (o *IngestOrchestrator) clearStatus(title string) {
	o.mu.Lock()
	delete(o.active, title)
	o.mu.Unlock()
}

func (o *IngestOrchestrator) countError(status *driving.IngestStatus) {
	o.mu.Lock()
	status.ErrorCount++
	o.mu.Unlock()
}

// Ingest runs the pipeline for one document source.
//
// Already materialised artifacts are fast-skipped through the store's
// idempotence gates; lazy-fill stages (figure description, gist) still
// act on artifacts whose target field is empty, which is what makes a
// re-run fill the gaps a previous run left behind.
//
//nolint:gocyclo // Orchestration function with necessary sequential steps
func (o *IngestOrchestrator) Ingest(ctx context.Context, source driven.DocumentSource) error {
	title := source.Title()

	// 1. Capability checks come first: an unsupported vision model is a
	// configuration error reported before any call or mutation is made.
	if o.visionary != nil && !o.visionary.SupportsVision() {
		return fmt.Errorf("%w: %s", domain.ErrVisionUnsupported, o.visionary.ModelName())
	}

	runID := uuid.NewString()
	status := &driving.IngestStatus{
		RunID:   runID,
		Title:   title,
		Running: true,
	}
	o.setStatus(status)
	defer o.clearStatus(title)

	logger.Info("ingest run %s: starting %q (%d pages)", runID, title, source.PageCount())
	defer o.tracker.Step(fmt.Sprintf("ingesting %q", title))()

	// 2. Resolve or create the document record.
	doc, err := o.resolveDocument(ctx, title, source.PageCount())
	if err != nil {
		return err
	}

	// 3. Generate the abstract when none exists. A collaborator error
	// here is fatal to the document: later stages depend on the
	// description.
	description := ""
	if doc.Description != nil {
		description = *doc.Description
	}
	if o.abstracter != nil && description == "" {
		description, err = o.generateAbstract(ctx, source, doc.ID, title)
		if err != nil {
			return fmt.Errorf("abstract: %w", err)
		}
	}

	// 4. Record the table-of-contents sections.
	if err := o.recordSections(ctx, doc.ID, source.Sections()); err != nil {
		return err
	}

	// 5. Semantic embedding over the section structure. Runs at most
	// once per document per invocation; failure is fatal to this stage
	// only and does not block section or page processing.
	if o.embedder != nil {
		if err := o.embedSections(ctx, doc.ID, source); err != nil {
			logger.Warn("ingest run %s: embedding stage failed: %v", runID, err)
			o.countError(status)
		}
	}

	// 6. Table pre-pass over the whole document, keyed by page.
	var tablesByPage map[int][]domain.Table
	if o.tables != nil {
		tablesByPage, err = o.extractTables(ctx, source)
		if err != nil {
			logger.Warn("ingest run %s: table pre-pass failed: %v", runID, err)
			o.countError(status)
		}
	}

	// 7. Page loop, strictly in document order. Each page commits
	// independently: a crash after page k leaves pages 1..k durable.
	window := NewContextWindow(o.windowSize)
	for n := 1; n <= source.PageCount(); n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := o.processPage(ctx, source, doc.ID, title, description, n, window, tablesByPage, status); err != nil {
			return fmt.Errorf("page %d: %w", n, err)
		}
		o.mu.Lock()
		status.PagesProcessed++
		o.mu.Unlock()
	}

	logger.Info("ingest run %s: finished %q", runID, title)
	return nil
}

// resolveDocument materialises the document row in its own commit
// scope so the natural-key lookup is durable before enrichment begins.
func (o *IngestOrchestrator) resolveDocument(ctx context.Context, title string, pageCount int) (driven.DocumentRef, error) {
	tx, err := o.store.Begin(ctx)
	if err != nil {
		return driven.DocumentRef{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	doc, err := tx.ResolveOrCreateDocument(ctx, title, pageCount)
	if err != nil {
		return driven.DocumentRef{}, fmt.Errorf("resolve document: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return driven.DocumentRef{}, fmt.Errorf("commit document: %w", err)
	}
	if doc.Created {
		logger.Debug("created document %d for %q", doc.ID, title)
	} else {
		logger.Debug("document %q already present as %d", title, doc.ID)
	}
	return doc, nil
}

// generateAbstract streams a whole-document description from the first
// AbstractPageCount pages and persists it.
func (o *IngestOrchestrator) generateAbstract(ctx context.Context, source driven.DocumentSource, documentID int64, title string) (string, error) {
	defer o.tracker.Step("generating abstract")()

	front, err := source.FrontMatter(ctx, AbstractPageCount)
	if err != nil {
		return "", fmt.Errorf("render front matter: %w", err)
	}

	messages := []driven.Message{
		{Role: "system", Text: abstractSystemPrompt(title)},
		{
			Role: "user",
			Text: "Please summarize this document.",
			Attachments: []driven.Attachment{
				{MIMEType: "application/pdf", Data: front},
			},
		},
	}

	// Partial results are forwarded to the progress observer as they
	// arrive; the final accumulated text is what gets persisted.
	description, err := o.abstracter.CompleteStream(ctx, messages, o.tracker.Detail)
	if err != nil {
		return "", err
	}
	if description == "" {
		return "", domain.ErrEmptyResponse
	}

	tx, err := o.store.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck
	if err := tx.SetDocumentDescription(ctx, documentID, description); err != nil {
		return "", fmt.Errorf("store description: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit description: %w", err)
	}

	logger.Info("generated description of %q: %s", title, description)
	return description, nil
}

// recordSections inserts table-of-contents entries, silently skipping
// (document, title) pairs that already exist from a previous run.
func (o *IngestOrchestrator) recordSections(ctx context.Context, documentID int64, sections []driven.SectionEntry) error {
	if len(sections) == 0 {
		return nil
	}
	defer o.tracker.Step("recording sections")()

	tx, err := o.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, section := range sections {
		if section.Title == "" || section.StartPage < 1 {
			continue
		}
		if _, _, err := tx.InsertSectionIfAbsent(ctx, documentID, section.Title, section.StartPage); err != nil {
			return fmt.Errorf("insert section %q: %w", section.Title, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit sections: %w", err)
	}
	return nil
}

// embedSections runs the semantic embedding stage over the document's
// section structure. Rows from a previous invocation suppress the
// stage entirely.
func (o *IngestOrchestrator) embedSections(ctx context.Context, documentID int64, source driven.DocumentSource) error {
	defer o.tracker.Step("embedding sections")()

	sections := source.Sections()
	if len(sections) == 0 {
		logger.Debug("no sections to embed for document %d", documentID)
		return nil
	}

	tx, err := o.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	existing, err := tx.CountEmbeddings(ctx, documentID)
	if err != nil {
		return fmt.Errorf("count embeddings: %w", err)
	}
	if existing > 0 {
		logger.Debug("document %d already has %d embedding rows", documentID, existing)
		return nil
	}

	texts := make([]string, 0, len(sections))
	for _, section := range sections {
		texts = append(texts, fmt.Sprintf("%s (page %d)", section.Title, section.StartPage))
	}

	vectors, err := o.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}
	if len(vectors) != len(texts) {
		return fmt.Errorf("embed: got %d vectors for %d sections", len(vectors), len(texts))
	}

	records := make([]domain.EmbeddingRecord, len(sections))
	for i, section := range sections {
		records[i] = domain.EmbeddingRecord{
			DocumentID:   documentID,
			SectionTitle: section.Title,
			Ordinal:      i,
			Content:      texts[i],
			Vector:       vectors[i],
		}
	}
	if err := tx.SaveEmbeddings(ctx, records); err != nil {
		return fmt.Errorf("save embeddings: %w", err)
	}
	return tx.Commit()
}

// extractTables runs the whole-document table pre-pass.
func (o *IngestOrchestrator) extractTables(ctx context.Context, source driven.DocumentSource) (map[int][]domain.Table, error) {
	defer o.tracker.Step("detecting tables")()
	return o.tables.ExtractTables(ctx, source)
}

// processPage runs the per-page stages inside a single commit scope:
// LOOKUP -> (EXTRACT if new) -> DESCRIBE_FIGURES -> SUMMARIZE ->
// EXTRACT_TABLES -> COMMIT. A crash mid-page discards the whole page;
// a Page row is never left without its figures.
//
//nolint:gocyclo // Per-page stage sequencing is necessarily sequential
func (o *IngestOrchestrator) processPage(
	ctx context.Context,
	source driven.DocumentSource,
	documentID int64,
	title string,
	description string,
	pageNumber int,
	window *ContextWindow,
	tablesByPage map[int][]domain.Table,
	status *driving.IngestStatus,
) error {
	defer o.tracker.Step(fmt.Sprintf("page %d of %d", pageNumber, source.PageCount()))()

	page, err := source.Page(ctx, pageNumber)
	if err != nil {
		// Unreadable page: reported, siblings unaffected, retried by a
		// future run since no row is written.
		logger.Warn("page %d of %q unreadable: %v", pageNumber, title, err)
		o.countError(status)
		return nil
	}

	tx, err := o.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ref, err := tx.RecordPage(ctx, documentID, pageNumber, page.Raw, page.Text)
	if err != nil {
		return fmt.Errorf("record page: %w", err)
	}

	// Figures are extracted once, at page-creation time.
	if ref.Created {
		o.tracker.UpdateCurrent(fmt.Sprintf("creating page %d", pageNumber))
		figures := make([]driven.FigureData, len(page.Images))
		for i, img := range page.Images {
			figures[i] = driven.FigureData{Data: img.Data, MIMEType: img.MIMEType}
		}
		if _, err := tx.RecordFigures(ctx, ref.ID, figures); err != nil {
			return fmt.Errorf("record figures: %w", err)
		}
	}

	if o.visionary != nil {
		if err := o.describeFigures(ctx, tx, ref.ID, pageNumber, status); err != nil {
			return err
		}
	}

	// Gist summarisation runs for new pages and for pages whose gist a
	// previous run left empty.
	if o.summarizer != nil && (ref.Created || !ref.HasGist) {
		o.summarizePage(ctx, tx, page, ref.ID, title, description, window, status)
	}

	// Tables carry no per-table idempotence; the page-level Created
	// guard is what keeps a re-run from inserting duplicates.
	if tablesByPage != nil && ref.Created {
		o.insertTables(ctx, tx, ref.ID, tablesByPage[pageNumber], pageNumber, status)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// describeFigures lazily fills figure descriptions: only figures whose
// description is still unset are selected, and an existing description
// is never overwritten. A per-figure collaborator failure is logged
// and left for a future run.
func (o *IngestOrchestrator) describeFigures(ctx context.Context, tx driven.ArtifactTx, pageID int64, pageNumber int, status *driving.IngestStatus) error {
	pending, err := tx.PendingFigures(ctx, pageID)
	if err != nil {
		return fmt.Errorf("pending figures: %w", err)
	}

	for _, figure := range pending {
		done := o.tracker.Step(fmt.Sprintf("describing figure %d on page %d", figure.ID, pageNumber))

		messages := []driven.Message{
			{Role: "system", Text: figureSystemPrompt},
			{
				Role: "user",
				Text: "Please describe this image.",
				Attachments: []driven.Attachment{
					{MIMEType: figure.MIMEType, Data: figure.Data},
				},
			},
		}
		description, err := o.visionary.Complete(ctx, messages)
		done()
		if err != nil {
			logger.Warn("describing figure %d failed: %v", figure.ID, err)
			o.countError(status)
			continue
		}
		if description == "" {
			logger.Warn("describing figure %d: %v", figure.ID, domain.ErrEmptyResponse)
			o.countError(status)
			continue
		}
		if err := tx.SetFigureDescription(ctx, figure.ID, description); err != nil {
			return fmt.Errorf("set figure description: %w", err)
		}
	}
	return nil
}

// summarizePage generates the page gist with the context window as
// prior context. Failure is non-fatal: the page still commits, later
// pages still run, and the window does not advance for the failed page
// so the next gist sees only real summaries.
func (o *IngestOrchestrator) summarizePage(
	ctx context.Context,
	tx driven.ArtifactTx,
	page *driven.SourcePage,
	pageID int64,
	title string,
	description string,
	window *ContextWindow,
	status *driving.IngestStatus,
) {
	defer o.tracker.Step(fmt.Sprintf("summarising page %d", page.Number))()

	messages := []driven.Message{
		{Role: "system", Text: gistSystemPrompt(title, description, page.Number, window.Snapshot())},
		{
			Role: "user",
			Text: "Please summarize this page.",
			Attachments: []driven.Attachment{
				{MIMEType: "application/pdf", Data: page.Raw},
			},
		},
	}

	gist, err := o.summarizer.CompleteStream(ctx, messages, o.tracker.Detail)
	if err != nil {
		logger.Warn("summarising page %d failed: %v", page.Number, err)
		o.countError(status)
		return
	}
	if gist == "" {
		logger.Warn("summarising page %d: %v", page.Number, domain.ErrEmptyResponse)
		o.countError(status)
		return
	}

	if err := tx.SetPageGist(ctx, pageID, gist); err != nil {
		logger.Warn("storing gist for page %d failed: %v", page.Number, err)
		o.countError(status)
		return
	}

	window.Append(gist)
	logger.Info("adding gist of page %d: %s", page.Number, gist)
}

// insertTables appends the pre-pass tables for one page. A malformed
// table is logged and skipped; sibling tables and the page commit are
// unaffected.
func (o *IngestOrchestrator) insertTables(ctx context.Context, tx driven.ArtifactTx, pageID int64, tables []domain.Table, pageNumber int, status *driving.IngestStatus) {
	if len(tables) == 0 {
		return
	}
	defer o.tracker.Step(fmt.Sprintf("inserting tables from page %d", pageNumber))()

	for _, table := range tables {
		if table.Text == "" {
			logger.Warn("table on page %d skipped: %v", pageNumber, domain.ErrMalformedTable)
			o.countError(status)
			continue
		}
		if _, err := tx.InsertTable(ctx, pageID, table); err != nil {
			logger.Warn("inserting table on page %d failed: %v", pageNumber, err)
			o.countError(status)
		}
	}
}
