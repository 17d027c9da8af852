package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docstash-cli/internal/core/domain"
	"github.com/custodia-labs/docstash-cli/internal/core/ports/driven"
	"github.com/custodia-labs/docstash-cli/internal/progress"
)

// threePageSource builds a source with three pages; page one carries
// two embedded images.
func threePageSource() *fakeSource {
	return &fakeSource{
		title: "Pump Manual",
		pages: []driven.SourcePage{
			{
				Number: 1,
				Raw:    []byte("%PDF page1"),
				Text:   "installation overview",
				Images: []driven.ImageData{
					{Data: []byte("img-a"), MIMEType: "image/png"},
					{Data: []byte("img-b"), MIMEType: "image/jpeg"},
				},
			},
			{Number: 2, Raw: []byte("%PDF page2"), Text: "wiring"},
			{Number: 3, Raw: []byte("%PDF page3"), Text: "maintenance"},
		},
		sections: []driven.SectionEntry{
			{Title: "Installation", StartPage: 1},
			{Title: "Maintenance", StartPage: 3},
		},
	}
}

func newOrchestrator(store driven.ArtifactStore, gen *fakeGen, embedder driven.EmbeddingService, tables driven.TableExtractor) *IngestOrchestrator {
	var abstracter, summarizer, visionary driven.GenerativeService
	if gen != nil {
		abstracter, summarizer, visionary = gen, gen, gen
	}
	return NewIngestOrchestrator(store, abstracter, summarizer, visionary, embedder, tables, progress.NewTracker(nil))
}

func TestIngest_NewDocumentCreatesAllArtifacts(t *testing.T) {
	store := &memStore{}
	gen := &fakeGen{vision: true}
	embedder := &fakeEmbedder{}
	tables := &fakeTables{byPage: map[int][]domain.Table{
		2: {{Text: "| a | b |", CaptionAbove: "Table 1"}},
	}}

	orch := newOrchestrator(store, gen, embedder, tables)
	require.NoError(t, orch.Ingest(context.Background(), threePageSource()))

	require.Len(t, store.docs, 1)
	assert.Equal(t, "Pump Manual", store.docs[0].title)
	assert.Equal(t, 3, store.docs[0].pageCount)
	require.NotNil(t, store.docs[0].description)

	assert.Len(t, store.pages, 3)
	for _, page := range store.pages {
		assert.NotNil(t, page.gist, "page %d should have a gist", page.number)
	}

	require.Len(t, store.figures, 2)
	for _, figure := range store.figures {
		assert.NotNil(t, figure.description)
	}

	assert.Len(t, store.sections, 2)
	assert.Len(t, store.tables, 1)
	assert.Len(t, store.embeddings, 2)
}

func TestIngest_RerunIsIdempotent(t *testing.T) {
	store := &memStore{}
	gen := &fakeGen{vision: true}
	embedder := &fakeEmbedder{}
	tables := &fakeTables{byPage: map[int][]domain.Table{
		1: {{Text: "| x |"}},
	}}

	orch := newOrchestrator(store, gen, embedder, tables)
	require.NoError(t, orch.Ingest(context.Background(), threePageSource()))

	docsAfterFirst := len(store.docs)
	pagesAfterFirst := len(store.pages)
	figuresAfterFirst := len(store.figures)
	sectionsAfterFirst := len(store.sections)
	tablesAfterFirst := len(store.tables)
	embeddingsAfterFirst := len(store.embeddings)
	genCallsAfterFirst := gen.callCount()
	embedCallsAfterFirst := embedder.calls

	require.NoError(t, orch.Ingest(context.Background(), threePageSource()))

	assert.Equal(t, docsAfterFirst, len(store.docs))
	assert.Equal(t, pagesAfterFirst, len(store.pages))
	assert.Equal(t, figuresAfterFirst, len(store.figures))
	assert.Equal(t, sectionsAfterFirst, len(store.sections))
	assert.Equal(t, tablesAfterFirst, len(store.tables))
	assert.Equal(t, embeddingsAfterFirst, len(store.embeddings))

	// Everything was already enriched, so the second run makes no
	// generative or embedding calls at all.
	assert.Equal(t, genCallsAfterFirst, gen.callCount())
	assert.Equal(t, embedCallsAfterFirst, embedder.calls)
}

func TestIngest_RerunFillsLazyStages(t *testing.T) {
	store := &memStore{}

	// First run: no collaborators at all - raw extraction only.
	bare := newOrchestrator(store, nil, nil, nil)
	require.NoError(t, bare.Ingest(context.Background(), threePageSource()))

	require.Len(t, store.pages, 3)
	for _, page := range store.pages {
		assert.Nil(t, page.gist)
	}
	for _, figure := range store.figures {
		assert.Nil(t, figure.description)
	}
	assert.Nil(t, store.docs[0].description)
	insertsAfterFirst := store.pageInserts

	// Second run with collaborators: lazy-fill stages act, extracted
	// pages and figures are not re-recorded.
	gen := &fakeGen{vision: true}
	full := newOrchestrator(store, gen, &fakeEmbedder{}, nil)
	require.NoError(t, full.Ingest(context.Background(), threePageSource()))

	assert.Equal(t, insertsAfterFirst, store.pageInserts, "pages must not be re-inserted")
	assert.Len(t, store.pages, 3)
	for _, page := range store.pages {
		assert.NotNil(t, page.gist)
	}
	require.Len(t, store.figures, 2)
	for _, figure := range store.figures {
		assert.NotNil(t, figure.description)
	}
	assert.NotNil(t, store.docs[0].description)
}

func TestIngest_FigureDescriptionNeverOverwritten(t *testing.T) {
	store := &memStore{}
	gen := &fakeGen{vision: true}

	orch := NewIngestOrchestrator(store, nil, nil, gen, nil, nil, nil)
	require.NoError(t, orch.Ingest(context.Background(), threePageSource()))

	require.Len(t, store.figures, 2)
	first := *store.figures[0].description
	callsAfterFirst := gen.callCount()

	require.NoError(t, orch.Ingest(context.Background(), threePageSource()))

	assert.Equal(t, first, *store.figures[0].description)
	assert.Equal(t, callsAfterFirst, gen.callCount(), "described figures must not be re-described")
}

func TestIngest_VisionUnsupportedIsFatalBeforeAnyCall(t *testing.T) {
	store := &memStore{}
	gen := &fakeGen{vision: false, model: "text-only-model"}

	orch := NewIngestOrchestrator(store, nil, nil, gen, nil, nil, nil)
	err := orch.Ingest(context.Background(), threePageSource())

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrVisionUnsupported)
	assert.Contains(t, err.Error(), "text-only-model")

	// Reported before any call or mutation.
	assert.Zero(t, gen.callCount())
	assert.Zero(t, store.begins)
}

func TestIngest_GistFailureDoesNotBlockLaterPages(t *testing.T) {
	store := &memStore{}
	failing := errors.New("model overloaded")
	gen := &fakeGen{
		reply: func(_ int, messages []driven.Message) (string, error) {
			for _, msg := range messages {
				if msg.Role == "system" && strings.Contains(msg.Text, "page 2 of") {
					return "", failing
				}
			}
			for _, msg := range messages {
				if msg.Role == "system" && strings.Contains(msg.Text, "page 1 of") {
					return "gist of page one", nil
				}
			}
			return "gist of page three", nil
		},
	}

	orch := NewIngestOrchestrator(store, nil, gen, nil, nil, nil, nil)
	require.NoError(t, orch.Ingest(context.Background(), threePageSource()))

	require.Len(t, store.pages, 3)
	assert.NotNil(t, store.pages[0].gist)
	assert.Nil(t, store.pages[1].gist, "failed gist stays empty for a future run")
	assert.NotNil(t, store.pages[2].gist)

	// The window does not advance for the failed page: page three's
	// context holds only page one's gist.
	prompts := gen.gistCallPrompts()
	require.Len(t, prompts, 3)
	assert.Contains(t, prompts[2], "gist of page one")
	assert.NotContains(t, prompts[2], "page 2")
}

func TestIngest_ContextWindowFeedsLaterGists(t *testing.T) {
	store := &memStore{}
	gen := &fakeGen{
		reply: func(call int, _ []driven.Message) (string, error) {
			return []string{"first gist", "second gist", "third gist"}[call], nil
		},
	}

	orch := NewIngestOrchestrator(store, nil, gen, nil, nil, nil, nil)
	require.NoError(t, orch.Ingest(context.Background(), threePageSource()))

	prompts := gen.gistCallPrompts()
	require.Len(t, prompts, 3)
	assert.NotContains(t, prompts[0], "preceding pages")
	assert.Contains(t, prompts[1], "first gist")
	assert.Contains(t, prompts[2], "first gist")
	assert.Contains(t, prompts[2], "second gist")
}

func TestIngest_TableFailureIsolated(t *testing.T) {
	store := &memStore{}
	tables := &fakeTables{byPage: map[int][]domain.Table{
		1: {
			{Text: ""}, // malformed: nothing could be rendered
			{Text: "| ok |"},
		},
	}}

	orch := NewIngestOrchestrator(store, nil, nil, nil, nil, tables, nil)
	require.NoError(t, orch.Ingest(context.Background(), threePageSource()))

	// The sibling table and the page itself both survive.
	require.Len(t, store.tables, 1)
	assert.Equal(t, "| ok |", store.tables[0].table.Text)
	assert.Len(t, store.pages, 3)
}

func TestIngest_TablePrePassFailureNonFatal(t *testing.T) {
	store := &memStore{}
	tables := &fakeTables{err: errors.New("detector crashed")}

	orch := NewIngestOrchestrator(store, nil, nil, nil, nil, tables, nil)
	require.NoError(t, orch.Ingest(context.Background(), threePageSource()))

	assert.Empty(t, store.tables)
	assert.Len(t, store.pages, 3)
}

func TestIngest_EmbeddingFailureNonFatal(t *testing.T) {
	store := &memStore{}
	embedder := &fakeEmbedder{err: errors.New("connection refused")}

	orch := NewIngestOrchestrator(store, nil, nil, nil, embedder, nil, nil)
	require.NoError(t, orch.Ingest(context.Background(), threePageSource()))

	assert.Empty(t, store.embeddings)
	assert.Len(t, store.pages, 3, "embedding failure must not block page processing")
}

func TestIngest_EmbeddingRunsOncePerDocument(t *testing.T) {
	store := &memStore{}
	embedder := &fakeEmbedder{}

	orch := NewIngestOrchestrator(store, nil, nil, nil, embedder, nil, nil)
	require.NoError(t, orch.Ingest(context.Background(), threePageSource()))
	require.NoError(t, orch.Ingest(context.Background(), threePageSource()))

	assert.Equal(t, 1, embedder.calls)
	assert.Len(t, store.embeddings, 2)
}

func TestIngest_AbstractFailureIsFatal(t *testing.T) {
	store := &memStore{}
	gen := &fakeGen{
		reply: func(_ int, _ []driven.Message) (string, error) {
			return "", errors.New("service unavailable")
		},
	}

	orch := NewIngestOrchestrator(store, gen, nil, nil, nil, nil, nil)
	err := orch.Ingest(context.Background(), threePageSource())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "abstract")
	assert.Empty(t, store.pages, "abstract failure blocks downstream stages")
}

func TestIngest_UnreadablePageSkipped(t *testing.T) {
	store := &memStore{}
	source := threePageSource()
	source.pageErr = map[int]error{2: domain.ErrUnreadablePage}

	orch := NewIngestOrchestrator(store, nil, nil, nil, nil, nil, nil)
	require.NoError(t, orch.Ingest(context.Background(), source))

	require.Len(t, store.pages, 2)
	assert.Equal(t, 1, store.pages[0].number)
	assert.Equal(t, 3, store.pages[1].number)
}

func TestIngest_SectionsDeduplicatedByTitle(t *testing.T) {
	store := &memStore{}
	source := threePageSource()
	source.sections = append(source.sections, driven.SectionEntry{Title: "Installation", StartPage: 1})

	orch := NewIngestOrchestrator(store, nil, nil, nil, nil, nil, nil)
	require.NoError(t, orch.Ingest(context.Background(), source))

	assert.Len(t, store.sections, 2)
}

func TestIngest_CancelledContextStopsBetweenPages(t *testing.T) {
	store := &memStore{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	orch := NewIngestOrchestrator(store, nil, nil, nil, nil, nil, nil)
	err := orch.Ingest(ctx, threePageSource())

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, store.pages)
}

func TestIngest_StatusClearedAfterRun(t *testing.T) {
	store := &memStore{}
	orch := NewIngestOrchestrator(store, nil, nil, nil, nil, nil, nil)

	require.NoError(t, orch.Ingest(context.Background(), threePageSource()))
	assert.Nil(t, orch.Status("Pump Manual"))
}
