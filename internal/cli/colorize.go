package cli

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss/v2"
)

var (
	passStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// painter applies styles only when color is enabled.
type painter struct {
	color bool
}

func (p painter) render(style lipgloss.Style, s string) string {
	if !p.color {
		return s
	}
	return style.Render(s)
}

func (p painter) status(passed bool) string {
	if passed {
		return p.render(passStyle, "PASSED")
	}
	return p.render(failStyle, "FAILED")
}

// assemblyLexer returns the first assembly lexer chroma knows.
func assemblyLexer(goarch string) chroma.Lexer {
	candidates := []string{"nasm", "gas"}
	if goarch == "arm64" {
		candidates = []string{"armasm", "gas"}
	}
	for _, name := range candidates {
		if lexer := lexers.Get(name); lexer != nil {
			return lexer
		}
	}
	return nil
}

// highlight colors an assembly listing for the terminal. It returns the
// listing unchanged when color is off or chroma can't handle it.
func (p painter) highlight(goarch, listing string) string {
	if !p.color {
		return listing
	}

	lexer := assemblyLexer(goarch)
	if lexer == nil {
		return listing
	}

	style := styles.Get("monokai")
	if style == nil {
		style = styles.Fallback
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, listing)
	if err != nil {
		return listing
	}

	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return listing
	}
	return buf.String()
}
