// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

var (
	markdownParser     goldmark.Markdown
	markdownParserOnce sync.Once
)

func getMarkdownParser() goldmark.Markdown {
	markdownParserOnce.Do(func() {
		markdownParser = goldmark.New(
			goldmark.WithExtensions(
				extension.Strikethrough,
				extension.Linkify,
				extension.TaskList,
			),
		)
	})
	return markdownParser
}

// markdownStyler owns the lipgloss renderer used for message bodies.
// The colour profile is fixed rather than detected so that bodies
// render the same inside the bubbletea program and in tests without a
// TTY.
type markdownStyler struct {
	renderer *lipgloss.Renderer
	theme    Theme
}

func newMarkdownStyler(output io.Writer, theme Theme) *markdownStyler {
	renderer := lipgloss.NewRenderer(output, termenv.WithProfile(termenv.ANSI256))
	renderer.SetColorProfile(termenv.ANSI256)
	return &markdownStyler{renderer: renderer, theme: theme}
}

// render parses a message body and returns styled lines wrapped to
// width. Soft line breaks become spaces; hard breaks and block
// boundaries start new lines.
func (styler *markdownStyler) render(body string, width int, foreground lipgloss.Color) string {
	if body == "" {
		return ""
	}
	source := []byte(body)
	document := getMarkdownParser().Parser().Parse(text.NewReader(source))
	walker := &markdownWalker{
		styler:     styler,
		source:     source,
		width:      width,
		foreground: foreground,
	}
	ast.Walk(document, walker.walk)
	walker.flush()
	return strings.TrimRight(strings.Join(walker.lines, "\n"), "\n")
}

// markdownWalker accumulates inline content per block and wraps it
// when the block closes.
type markdownWalker struct {
	styler     *markdownStyler
	source     []byte
	width      int
	foreground lipgloss.Color

	lines  []string
	inline strings.Builder

	prefix      string
	prefixWidth int
	bullet      string
	lists       []listLevel
	itemPads    []int

	bold          int
	italic        int
	strikethrough int
}

type listLevel struct {
	ordered bool
	counter int
}

func (walker *markdownWalker) style() lipgloss.Style {
	style := walker.styler.renderer.NewStyle().Foreground(walker.foreground)
	if walker.bold > 0 {
		style = style.Bold(true)
	}
	if walker.italic > 0 {
		style = style.Italic(true)
	}
	if walker.strikethrough > 0 {
		style = style.Strikethrough(true)
	}
	return style
}

func (walker *markdownWalker) faint() lipgloss.Style {
	return walker.styler.renderer.NewStyle().Foreground(walker.styler.theme.FaintText)
}

func (walker *markdownWalker) contentWidth() int {
	width := walker.width - walker.prefixWidth
	if width < 8 {
		width = 8
	}
	return width
}

// emit appends already-wrapped content, prefixing each line.
func (walker *markdownWalker) emit(content string) {
	for _, line := range strings.Split(content, "\n") {
		lead := walker.prefix
		if walker.bullet != "" {
			lead = walker.bullet
			walker.bullet = ""
		}
		walker.lines = append(walker.lines, lead+line)
	}
}

func (walker *markdownWalker) flush() {
	content := walker.inline.String()
	walker.inline.Reset()
	if content == "" {
		return
	}
	walker.emit(ansi.Wrap(content, walker.contentWidth(), " ,.;-+|"))
}

func (walker *markdownWalker) walk(node ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node.Kind() {
	case ast.KindParagraph, ast.KindTextBlock, ast.KindHeading:
		if entering {
			walker.flush()
			if node.Kind() == ast.KindHeading {
				walker.bold++
			}
		} else {
			if node.Kind() == ast.KindHeading {
				walker.bold--
			}
			walker.flush()
		}

	case ast.KindFencedCodeBlock:
		if entering {
			walker.flush()
			block := node.(*ast.FencedCodeBlock)
			walker.renderCode(walker.blockText(block), string(block.Language(walker.source)))
			return ast.WalkSkipChildren, nil
		}

	case ast.KindCodeBlock:
		if entering {
			walker.flush()
			walker.renderCode(walker.blockText(node), "")
			return ast.WalkSkipChildren, nil
		}

	case ast.KindBlockquote:
		walker.flush()
		if entering {
			walker.prefix += "│ "
			walker.prefixWidth += 2
		} else {
			walker.prefix = strings.TrimSuffix(walker.prefix, "│ ")
			walker.prefixWidth -= 2
		}

	case ast.KindList:
		walker.flush()
		if entering {
			list := node.(*ast.List)
			walker.lists = append(walker.lists, listLevel{ordered: list.IsOrdered(), counter: list.Start})
		} else if len(walker.lists) > 0 {
			walker.lists = walker.lists[:len(walker.lists)-1]
		}

	case ast.KindListItem:
		walker.flush()
		if len(walker.lists) == 0 {
			break
		}
		if !entering {
			pad := walker.itemPads[len(walker.itemPads)-1]
			walker.itemPads = walker.itemPads[:len(walker.itemPads)-1]
			walker.prefix = walker.prefix[:len(walker.prefix)-pad]
			walker.prefixWidth -= pad
			break
		}
		top := &walker.lists[len(walker.lists)-1]
		marker := "• "
		if top.ordered {
			marker = fmt.Sprintf("%d. ", top.counter)
			top.counter++
		}
		pad := ansi.StringWidth(marker)
		walker.bullet = walker.prefix + marker
		walker.prefix += strings.Repeat(" ", pad)
		walker.prefixWidth += pad
		walker.itemPads = append(walker.itemPads, pad)

	case ast.KindThematicBreak:
		if entering {
			walker.flush()
			walker.emit(walker.faint().Render(strings.Repeat("─", walker.contentWidth())))
		}

	case ast.KindHTMLBlock:
		if entering {
			walker.flush()
			walker.emit(walker.faint().Render(strings.TrimSpace(walker.blockText(node))))
			return ast.WalkSkipChildren, nil
		}

	case ast.KindText:
		if entering {
			textNode := node.(*ast.Text)
			walker.inline.WriteString(walker.style().Render(string(textNode.Segment.Value(walker.source))))
			if textNode.HardLineBreak() {
				walker.inline.WriteString("\n")
			} else if textNode.SoftLineBreak() {
				walker.inline.WriteString(" ")
			}
		}

	case ast.KindString:
		if entering {
			walker.inline.WriteString(walker.style().Render(string(node.(*ast.String).Value)))
		}

	case ast.KindEmphasis:
		counter := &walker.italic
		if node.(*ast.Emphasis).Level >= 2 {
			counter = &walker.bold
		}
		if entering {
			*counter++
		} else {
			*counter--
		}

	case extast.KindStrikethrough:
		if entering {
			walker.strikethrough++
		} else {
			walker.strikethrough--
		}

	case extast.KindTaskCheckBox:
		if entering {
			box := "[ ] "
			if node.(*extast.TaskCheckBox).IsChecked {
				box = "[x] "
			}
			walker.inline.WriteString(walker.style().Render(box))
		}

	case ast.KindCodeSpan:
		if entering {
			var code strings.Builder
			for child := node.FirstChild(); child != nil; child = child.NextSibling() {
				switch inline := child.(type) {
				case *ast.Text:
					code.Write(inline.Segment.Value(walker.source))
				case *ast.String:
					code.Write(inline.Value)
				}
			}
			walker.inline.WriteString(walker.faint().Render(code.String()))
			return ast.WalkSkipChildren, nil
		}

	case ast.KindLink:
		if !entering {
			destination := string(node.(*ast.Link).Destination)
			if destination != "" {
				walker.inline.WriteString(" " + walker.faint().Render("("+destination+")"))
			}
		}

	case ast.KindAutoLink:
		if entering {
			link := node.(*ast.AutoLink)
			style := walker.styler.renderer.NewStyle().Foreground(walker.styler.theme.LinkForeground).Underline(true)
			walker.inline.WriteString(style.Render(string(link.URL(walker.source))))
			return ast.WalkSkipChildren, nil
		}

	case ast.KindImage:
		if entering {
			image := node.(*ast.Image)
			walker.inline.WriteString(walker.faint().Render("[image: " + string(image.Destination) + "]"))
			return ast.WalkSkipChildren, nil
		}

	case ast.KindRawHTML:
		if entering {
			segments := node.(*ast.RawHTML).Segments
			for index := 0; index < segments.Len(); index++ {
				segment := segments.At(index)
				walker.inline.WriteString(walker.faint().Render(string(segment.Value(walker.source))))
			}
			return ast.WalkSkipChildren, nil
		}
	}
	return ast.WalkContinue, nil
}

func (walker *markdownWalker) blockText(node ast.Node) string {
	var builder strings.Builder
	lines := node.Lines()
	for index := 0; index < lines.Len(); index++ {
		segment := lines.At(index)
		builder.Write(segment.Value(walker.source))
	}
	return builder.String()
}

// renderCode highlights code with chroma. Unknown languages and
// highlighter failures fall back to faint plain text. Code lines are
// truncated, never wrapped.
func (walker *markdownWalker) renderCode(code, language string) {
	code = strings.TrimRight(code, "\n")
	highlighted := ""
	if language != "" {
		var buffer strings.Builder
		if err := quick.Highlight(&buffer, code, language, "terminal256", "monokai"); err == nil {
			highlighted = strings.TrimRight(buffer.String(), "\n")
		}
	}
	if highlighted == "" {
		highlighted = walker.faint().Render(code)
	}
	for _, line := range strings.Split(highlighted, "\n") {
		walker.emit(ansi.Truncate(line, walker.contentWidth(), "…"))
	}
}
