package tui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderPlain_PrintsInnermostTaskOnce(t *testing.T) {
	var buf bytes.Buffer
	v := &View{out: &buf, plain: true}

	v.Render([]string{"processing manual.pdf"}, "")
	v.Render([]string{"processing manual.pdf", "creating page 1"}, "")
	v.Render([]string{"processing manual.pdf", "creating page 1"}, "streamed chunk")
	v.Render([]string{"processing manual.pdf", "creating page 2"}, "")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{
		"* processing manual.pdf",
		"* creating page 1",
		"* creating page 2",
	}, lines)
}

func TestRenderPlain_EmptyStackPrintsNothing(t *testing.T) {
	var buf bytes.Buffer
	v := &View{out: &buf, plain: true}

	v.Render(nil, "")
	assert.Zero(t, buf.Len())
}

func TestModelView_DrawsNestedStack(t *testing.T) {
	m := newModel()
	m.stack = []string{"processing manual.pdf", "page 3", "describing figure 2"}
	m.detail = "a cutaway diagram of the impeller"

	out := m.View()
	assert.Contains(t, out, "processing manual.pdf")
	assert.Contains(t, out, "page 3")
	assert.Contains(t, out, "describing figure 2")
	assert.Contains(t, out, "impeller")
}

func TestModelView_EmptyStack(t *testing.T) {
	m := newModel()
	assert.Empty(t, m.View())
}

func TestModelUpdate_ProgressMsgReplacesState(t *testing.T) {
	m := newModel()
	updated, _ := m.Update(progressMsg{stack: []string{"a", "b"}, detail: "d"})

	got := updated.(model)
	assert.Equal(t, []string{"a", "b"}, got.stack)
	assert.Equal(t, "d", got.detail)
}

func TestTruncate_KeepsTail(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	got := truncate(strings.Repeat("x", 50)+"END", 10)
	assert.True(t, strings.HasPrefix(got, "..."))
	assert.True(t, strings.HasSuffix(got, "END"))
	assert.Equal(t, "a b", truncate("a\nb", 10))
}
