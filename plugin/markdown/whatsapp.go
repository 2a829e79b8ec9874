// Package markdown converts model-emitted markdown into WhatsApp text
// conventions (*bold*, _italic_, ~strike~, ```monospace```).
package markdown

import (
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

var md = goldmark.New(goldmark.WithExtensions(extension.Strikethrough))

// ToWhatsApp renders a markdown string as WhatsApp-formatted plain text.
func ToWhatsApp(input string) string {
	source := []byte(input)
	doc := md.Parser().Parse(text.NewReader(source))

	var blocks []string
	for child := doc.FirstChild(); child != nil; child = child.NextSibling() {
		if s := renderBlock(child, source, 0); s != "" {
			blocks = append(blocks, s)
		}
	}
	return strings.Join(blocks, "\n\n")
}

func renderBlock(n ast.Node, source []byte, depth int) string {
	switch node := n.(type) {
	case *ast.Heading:
		return "*" + renderInlines(node, source) + "*"

	case *ast.Paragraph, *ast.TextBlock:
		return renderInlines(n, source)

	case *ast.FencedCodeBlock, *ast.CodeBlock:
		return "```\n" + rawLines(n, source) + "```"

	case *ast.List:
		return renderList(node, source, depth)

	case *ast.Blockquote:
		var inner []string
		for child := n.FirstChild(); child != nil; child = child.NextSibling() {
			inner = append(inner, renderBlock(child, source, depth))
		}
		lines := strings.Split(strings.Join(inner, "\n"), "\n")
		for i, line := range lines {
			lines[i] = "> " + line
		}
		return strings.Join(lines, "\n")

	case *ast.ThematicBreak:
		return "---"

	case *ast.HTMLBlock:
		return rawLines(n, source)

	default:
		var inner []string
		for child := n.FirstChild(); child != nil; child = child.NextSibling() {
			inner = append(inner, renderBlock(child, source, depth))
		}
		return strings.Join(inner, "\n")
	}
}

func renderList(list *ast.List, source []byte, depth int) string {
	indent := strings.Repeat("  ", depth)
	var lines []string

	index := list.Start
	if index == 0 {
		index = 1
	}
	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		marker := "- "
		if list.IsOrdered() {
			marker = strconv.Itoa(index) + ". "
			index++
		}

		var parts []string
		for child := item.FirstChild(); child != nil; child = child.NextSibling() {
			if nested, ok := child.(*ast.List); ok {
				parts = append(parts, renderList(nested, source, depth+1))
				continue
			}
			parts = append(parts, indent+marker+renderBlock(child, source, depth))
			// Only the first block of an item carries the marker.
			marker = "  "
		}
		lines = append(lines, strings.Join(parts, "\n"))
	}
	return strings.Join(lines, "\n")
}

func renderInlines(n ast.Node, source []byte) string {
	var b strings.Builder
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		switch node := child.(type) {
		case *ast.Text:
			b.Write(node.Segment.Value(source))
			if node.SoftLineBreak() || node.HardLineBreak() {
				b.WriteString("\n")
			}

		case *ast.String:
			b.Write(node.Value)

		case *ast.Emphasis:
			inner := renderInlines(node, source)
			if node.Level >= 2 {
				b.WriteString("*" + inner + "*")
			} else {
				b.WriteString("_" + inner + "_")
			}

		case *ast.CodeSpan:
			b.WriteString("```" + renderInlines(node, source) + "```")

		case *ast.Link:
			label := renderInlines(node, source)
			dest := string(node.Destination)
			if label == "" || label == dest {
				b.WriteString(dest)
			} else {
				b.WriteString(label + " (" + dest + ")")
			}

		case *ast.AutoLink:
			b.Write(node.URL(source))

		case *ast.Image:
			label := renderInlines(node, source)
			dest := string(node.Destination)
			if label == "" {
				b.WriteString(dest)
			} else {
				b.WriteString(label + " (" + dest + ")")
			}

		case *east.Strikethrough:
			b.WriteString("~" + renderInlines(node, source) + "~")

		case *ast.RawHTML:
			for i := 0; i < node.Segments.Len(); i++ {
				seg := node.Segments.At(i)
				b.Write(seg.Value(source))
			}

		default:
			b.WriteString(renderInlines(child, source))
		}
	}
	return b.String()
}

func rawLines(n ast.Node, source []byte) string {
	var b strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(source))
	}
	return b.String()
}

