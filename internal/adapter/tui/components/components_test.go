package components

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"

	"arbiter-launcher/internal/domain"
)

func TestOutputViewKeepsOrderAndCap(t *testing.T) {
	ov := NewOutputView()
	ov.MaxBytes = 16
	ov.SetSize(80, 10)

	ov.Append(domain.SourceSystem, "first chunk\n", false)
	ov.Append(domain.SourceProcess, "second\n", false)
	ov.Append(domain.SourceProcess, "third\n", true)

	text := ov.Text()
	assert.NotContains(t, text, "first chunk")
	assert.Equal(t, "second\nthird\n", text)
}

func TestOutputViewStylesEachChunkOnce(t *testing.T) {
	calls := 0
	render = func(c outputChunk) string {
		calls++
		return renderChunk(c)
	}
	t.Cleanup(func() { render = renderChunk })

	ov := NewOutputView()
	ov.MaxBytes = 4 * 1024
	ov.SetSize(80, 10)

	line := "Error output: " + strings.Repeat("x", 50) + "\n"
	for range 500 {
		ov.Append(domain.SourceProcess, line, true)
	}
	assert.Equal(t, 500, calls, "retained chunks must not be restyled on append")
	assert.LessOrEqual(t, len(ov.Text()), 4*1024)

	calls = 0
	ov.SetSize(100, 20)
	ov.Append(domain.SourceSystem, "Launching main program...\n", false)
	assert.Equal(t, 1, calls)
	assert.True(t, strings.HasSuffix(ov.Text(), "Launching main program...\n"))
	assert.Contains(t, ov.View(), "Launching main program...")
}

func TestOutputViewBeforeSize(t *testing.T) {
	ov := NewOutputView()
	ov.Append(domain.SourceSystem, "queued\n", false)
	assert.Equal(t, "queued\n", ov.Text())
}

func TestStatusLineShowsPhaseAndTarget(t *testing.T) {
	line := StatusLine{
		Hints:  []KeyHint{{"Enter", "Send"}},
		Phase:  "Running",
		Target: "/srv/signer",
	}

	view := line.Render(120)
	assert.Contains(t, view, "Send")
	assert.Contains(t, view, "Running")
	assert.Contains(t, view, "/srv/signer")
}

func TestShortenPath(t *testing.T) {
	assert.Equal(t, "/srv/signer", shortenPath("/srv/signer", 40))
	assert.Equal(t, "/srv/signer", shortenPath("/srv/signer", 0))

	short := shortenPath("/home/operator/work/arbiter/Arbiter_Signer", 20)
	assert.True(t, strings.HasSuffix(short, "Arbiter_Signer"), short)
	assert.Equal(t, 20, lipgloss.Width(short))
}

func TestMarkdownRendersPlainWithoutRenderer(t *testing.T) {
	var md MarkdownModel
	assert.Equal(t, "- item\n", md.Render("- item\n"))
}

func TestMarkdownRendersList(t *testing.T) {
	md := NewMarkdown()
	md.SetWidth(60)

	out := md.Render("**Suggestions**\n\n- Check your network\n")
	assert.Contains(t, out, "Suggestions")
	assert.Contains(t, out, "Check your network")
	assert.False(t, strings.HasSuffix(out, "\n"))
}
