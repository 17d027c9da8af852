package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/custodia-labs/docstash-cli/internal/core/domain"
	"github.com/custodia-labs/docstash-cli/internal/core/ports/driven"
)

// memStore is an in-memory ArtifactStore. Writes apply immediately;
// commit boundaries are recorded so tests can assert on them.
// Transactional crash semantics live in the sqlite adapter tests.
type memStore struct {
	mu     sync.Mutex
	nextID int64

	docs       []*memDoc
	pages      []*memPage
	figures    []*memFigure
	tables     []*memTable
	sections   []*memSection
	embeddings []domain.EmbeddingRecord

	begins      int
	commits     int
	pageInserts int

	beginErr error
}

type memDoc struct {
	id          int64
	title       string
	description *string
	pageCount   int
}

type memPage struct {
	id         int64
	documentID int64
	number     int
	raw        []byte
	text       string
	gist       *string
}

type memFigure struct {
	id          int64
	pageID      int64
	data        []byte
	mimeType    string
	description *string
}

type memTable struct {
	id     int64
	pageID int64
	table  domain.Table
}

type memSection struct {
	id         int64
	documentID int64
	title      string
	startPage  int
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memStore) Begin(_ context.Context) (driven.ArtifactTx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.beginErr != nil {
		return nil, s.beginErr
	}
	s.begins++
	return &memTx{store: s}, nil
}

func (s *memStore) Close() error { return nil }

func (s *memStore) pageByNumber(documentID int64, number int) *memPage {
	for _, p := range s.pages {
		if p.documentID == documentID && p.number == number {
			return p
		}
	}
	return nil
}

type memTx struct {
	store *memStore
	done  bool
}

func (t *memTx) ResolveOrCreateDocument(_ context.Context, title string, pageCount int) (driven.DocumentRef, error) {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.docs {
		if d.title == title {
			return driven.DocumentRef{ID: d.id, Description: d.description}, nil
		}
	}
	doc := &memDoc{id: s.id(), title: title, pageCount: pageCount}
	s.docs = append(s.docs, doc)
	return driven.DocumentRef{ID: doc.id, Created: true}, nil
}

func (t *memTx) SetDocumentDescription(_ context.Context, documentID int64, description string) error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.docs {
		if d.id == documentID {
			d.description = &description
			return nil
		}
	}
	return domain.ErrNotFound
}

func (t *memTx) RecordPage(_ context.Context, documentID int64, pageNumber int, raw []byte, text string) (driven.PageRef, error) {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if p := s.pageByNumber(documentID, pageNumber); p != nil {
		return driven.PageRef{ID: p.id, HasGist: p.gist != nil}, nil
	}
	page := &memPage{id: s.id(), documentID: documentID, number: pageNumber, raw: raw, text: text}
	s.pages = append(s.pages, page)
	s.pageInserts++
	return driven.PageRef{ID: page.id, Created: true}, nil
}

func (t *memTx) RecordFigures(_ context.Context, pageID int64, figures []driven.FigureData) ([]int64, error) {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, len(figures))
	for i, f := range figures {
		fig := &memFigure{id: s.id(), pageID: pageID, data: f.Data, mimeType: f.MIMEType}
		s.figures = append(s.figures, fig)
		ids[i] = fig.id
	}
	return ids, nil
}

func (t *memTx) PendingFigures(_ context.Context, pageID int64) ([]driven.PendingFigure, error) {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	var pending []driven.PendingFigure
	for _, f := range s.figures {
		if f.pageID == pageID && f.description == nil {
			pending = append(pending, driven.PendingFigure{ID: f.id, Data: f.data, MIMEType: f.mimeType})
		}
	}
	return pending, nil
}

func (t *memTx) SetFigureDescription(_ context.Context, figureID int64, description string) error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.figures {
		if f.id == figureID {
			f.description = &description
			return nil
		}
	}
	return domain.ErrNotFound
}

func (t *memTx) SetPageGist(_ context.Context, pageID int64, gist string) error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.pages {
		if p.id == pageID {
			p.gist = &gist
			return nil
		}
	}
	return domain.ErrNotFound
}

func (t *memTx) InsertSectionIfAbsent(_ context.Context, documentID int64, title string, startPage int) (int64, bool, error) {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sec := range s.sections {
		if sec.documentID == documentID && sec.title == title {
			return sec.id, false, nil
		}
	}
	sec := &memSection{id: s.id(), documentID: documentID, title: title, startPage: startPage}
	s.sections = append(s.sections, sec)
	return sec.id, true, nil
}

func (t *memTx) InsertTable(_ context.Context, pageID int64, table domain.Table) (int64, error) {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	row := &memTable{id: s.id(), pageID: pageID, table: table}
	s.tables = append(s.tables, row)
	return row.id, nil
}

func (t *memTx) CountEmbeddings(_ context.Context, documentID int64) (int, error) {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, rec := range s.embeddings {
		if rec.DocumentID == documentID {
			count++
		}
	}
	return count, nil
}

func (t *memTx) SaveEmbeddings(_ context.Context, records []domain.EmbeddingRecord) error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.embeddings = append(s.embeddings, records...)
	return nil
}

func (t *memTx) Commit() error {
	if t.done {
		return errors.New("already finished")
	}
	t.done = true
	t.store.mu.Lock()
	t.store.commits++
	t.store.mu.Unlock()
	return nil
}

func (t *memTx) Rollback() error {
	t.done = true
	return nil
}

// fakeSource is an in-memory DocumentSource.
type fakeSource struct {
	title    string
	pages    []driven.SourcePage
	sections []driven.SectionEntry
	pageErr  map[int]error
	front    []byte
	frontErr error
}

func (f *fakeSource) Title() string   { return f.title }
func (f *fakeSource) PageCount() int  { return len(f.pages) }
func (f *fakeSource) Close() error    { return nil }

func (f *fakeSource) Page(_ context.Context, n int) (*driven.SourcePage, error) {
	if err := f.pageErr[n]; err != nil {
		return nil, err
	}
	if n < 1 || n > len(f.pages) {
		return nil, fmt.Errorf("page %d out of range", n)
	}
	page := f.pages[n-1]
	return &page, nil
}

func (f *fakeSource) FrontMatter(_ context.Context, _ int) ([]byte, error) {
	if f.frontErr != nil {
		return nil, f.frontErr
	}
	if f.front != nil {
		return f.front, nil
	}
	return []byte("%PDF front matter"), nil
}

func (f *fakeSource) Sections() []driven.SectionEntry { return f.sections }

// fakeGen is a scriptable GenerativeService.
type fakeGen struct {
	mu      sync.Mutex
	vision  bool
	model   string
	reply   func(call int, messages []driven.Message) (string, error)
	calls   [][]driven.Message
}

func (g *fakeGen) complete(messages []driven.Message) (string, error) {
	g.mu.Lock()
	call := len(g.calls)
	copied := make([]driven.Message, len(messages))
	copy(copied, messages)
	g.calls = append(g.calls, copied)
	g.mu.Unlock()
	if g.reply == nil {
		return fmt.Sprintf("reply %d", call), nil
	}
	return g.reply(call, messages)
}

func (g *fakeGen) Complete(_ context.Context, messages []driven.Message) (string, error) {
	return g.complete(messages)
}

func (g *fakeGen) CompleteStream(_ context.Context, messages []driven.Message, onChunk func(string)) (string, error) {
	text, err := g.complete(messages)
	if err == nil && onChunk != nil {
		onChunk(text)
	}
	return text, err
}

func (g *fakeGen) SupportsVision() bool { return g.vision }

func (g *fakeGen) ModelName() string {
	if g.model == "" {
		return "fake-model"
	}
	return g.model
}

func (g *fakeGen) Close() error { return nil }

func (g *fakeGen) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

// systemPromptOfCall returns the system text of the i-th recorded call.
func (g *fakeGen) systemPromptOfCall(i int) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, msg := range g.calls[i] {
		if msg.Role == "system" {
			return msg.Text
		}
	}
	return ""
}

// gistCalls returns the system prompts of calls that look like page
// summarisation requests.
func (g *fakeGen) gistCallPrompts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var prompts []string
	for _, call := range g.calls {
		for _, msg := range call {
			if msg.Role == "system" && strings.Contains(msg.Text, "gist") {
				prompts = append(prompts, msg.Text)
			}
		}
	}
	return prompts
}

// fakeEmbedder is a scriptable EmbeddingService.
type fakeEmbedder struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (e *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (e *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i), 0.5, 1.0}
	}
	return out, nil
}

func (e *fakeEmbedder) Dimensions() int   { return 3 }
func (e *fakeEmbedder) ModelName() string { return "fake-embedder" }
func (e *fakeEmbedder) Close() error      { return nil }

// fakeTables is a scriptable TableExtractor.
type fakeTables struct {
	byPage map[int][]domain.Table
	err    error
}

func (f *fakeTables) ExtractTables(_ context.Context, _ driven.DocumentSource) (map[int][]domain.Table, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byPage, nil
}
