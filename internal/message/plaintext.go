// Copyright (C) 2020  Lukas Dietrich <lukas@lukasdietrich.com>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package message

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	blankLines = regexp.MustCompile(`\n\s*\n`)
	spaces     = regexp.MustCompile(`[ \t\r\n\f]+`)
)

// PlainText derives a plain text alternative from html. Images, link targets and markup are
// dropped, block elements are separated by line breaks and runs of blank lines are collapsed.
// The indentation of pre formatted text is kept.
func PlainText(content string) (string, error) {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	writePlainText(&b, doc, false)

	lines := strings.Split(b.String(), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t\r\f")
	}

	text := blankLines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.Trim(text, "\n"), nil
}

func writePlainText(b *strings.Builder, n *html.Node, pre bool) {
	switch n.Type {
	case html.TextNode:
		if pre {
			b.WriteString(n.Data)
			return
		}

		text := spaces.ReplaceAllString(n.Data, " ")
		if atLineStart(b) {
			text = strings.TrimLeft(text, " ")
		}

		b.WriteString(text)

		return

	case html.ElementNode:
		switch n.DataAtom {
		case atom.Head, atom.Script, atom.Style, atom.Img, atom.Title, atom.Template:
			return
		case atom.Br:
			b.WriteString("\n")
			return
		case atom.Hr:
			ensureNewlines(b, 2)
			return
		case atom.Pre:
			pre = true
		}
	}

	newlines := blockNewlines(n)
	ensureNewlines(b, newlines)

	for child := n.FirstChild; child != nil; child = child.NextSibling {
		writePlainText(b, child, pre)
	}

	ensureNewlines(b, newlines)

	if n.Type == html.ElementNode && (n.DataAtom == atom.Td || n.DataAtom == atom.Th) {
		b.WriteString(" ")
	}
}

// atLineStart reports whether the next text starts a new line. Only pre formatted text keeps
// its leading whitespace.
func atLineStart(b *strings.Builder) bool {
	s := b.String()
	return s == "" || s[len(s)-1] == '\n'
}

// ensureNewlines terminates the current line and adds blank lines until count line breaks
// precede the next text. Trailing spaces are not counted as content.
func ensureNewlines(b *strings.Builder, count int) {
	s := b.String()
	if s == "" {
		return
	}

	have := 0

	for i := len(s) - 1; i >= 0 && have < count; i-- {
		if s[i] == '\n' {
			have++
		} else if s[i] != ' ' && s[i] != '\t' {
			break
		}
	}

	for ; have < count; have++ {
		b.WriteByte('\n')
	}
}

func blockNewlines(n *html.Node) int {
	if n.Type != html.ElementNode {
		return 0
	}

	switch n.DataAtom {
	case atom.P, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
		atom.Blockquote, atom.Pre, atom.Table, atom.Ul, atom.Ol:
		return 2
	case atom.Div, atom.Li, atom.Tr, atom.Section, atom.Article, atom.Header,
		atom.Footer, atom.Nav, atom.Main, atom.Aside, atom.Dl, atom.Dt, atom.Dd,
		atom.Address, atom.Figure, atom.Figcaption, atom.Center:
		return 1
	default:
		return 0
	}
}
