package parser

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	tshtml "github.com/smacker/go-tree-sitter/html"
	nethtml "golang.org/x/net/html"
)

// errMarkup signals that the tree-sitter parse recovered from syntax errors,
// so the tolerant x/net/html strategy should take over.
var errMarkup = errors.New("html: markup has syntax errors")

// skippedTags never contribute visible text.
var skippedTags = map[string]bool{"script": true, "style": true, "noscript": true}

var headingTags = map[string]bool{"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true}

// textCollector accumulates visible text blocks and the headings among them.
type textCollector struct {
	lines    []string
	starts   []int // byte offset of each line in the joined text
	size     int
	headings []Heading
}

func (c *textCollector) add(s string) {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return
	}
	if len(c.lines) > 0 {
		c.size++
	}
	c.starts = append(c.starts, c.size)
	c.lines = append(c.lines, s)
	c.size += len(s)
}

// heading records the text added since mark as one heading.
func (c *textCollector) heading(mark int) {
	if mark >= len(c.lines) {
		return
	}
	c.headings = append(c.headings, Heading{
		Text:   strings.Join(c.lines[mark:], " "),
		Offset: c.starts[mark],
	})
}

func (c *textCollector) document() *Document {
	return &Document{Text: strings.Join(c.lines, "\n"), Headings: c.headings}
}

func extractHTMLTreeSitter(ctx context.Context, path string) (*Document, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	parser := sitter.NewParser()
	parser.SetLanguage(tshtml.GetLanguage())
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, errMarkup
	}
	w := &tsWalker{src: src}
	w.walk(root)
	return w.document(), nil
}

type tsWalker struct {
	textCollector
	src []byte
}

func (w *tsWalker) walk(n *sitter.Node) {
	isHeading := false
	switch n.Type() {
	case "script_element", "style_element", "comment", "doctype":
		return
	case "element":
		tag := w.tagName(n)
		if skippedTags[tag] {
			return
		}
		isHeading = headingTags[tag]
	}

	mark := len(w.lines)
	// Adjacent text and entity nodes form one run so "a &amp; b" stays on
	// one line.
	start, end := -1, -1
	flush := func() {
		if start >= 0 {
			w.add(nethtml.UnescapeString(string(w.src[start:end])))
			start = -1
		}
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		switch c.Type() {
		case "text", "entity":
			if start < 0 {
				start = int(c.StartByte())
			}
			end = int(c.EndByte())
		default:
			flush()
			w.walk(c)
		}
	}
	flush()

	if isHeading {
		w.heading(mark)
	}
}

func (w *tsWalker) tagName(element *sitter.Node) string {
	for i := 0; i < int(element.ChildCount()); i++ {
		c := element.Child(i)
		if c.Type() != "start_tag" && c.Type() != "self_closing_tag" {
			continue
		}
		for j := 0; j < int(c.ChildCount()); j++ {
			if name := c.Child(j); name.Type() == "tag_name" {
				return strings.ToLower(name.Content(w.src))
			}
		}
	}
	return ""
}

func extractHTMLNet(_ context.Context, path string) (*Document, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	root, err := nethtml.Parse(bytes.NewReader(src))
	if err != nil {
		return nil, err
	}
	var c textCollector
	walkNet(&c, root)
	return c.document(), nil
}

func walkNet(c *textCollector, n *nethtml.Node) {
	switch n.Type {
	case nethtml.TextNode:
		c.add(n.Data)
		return
	case nethtml.CommentNode, nethtml.DoctypeNode:
		return
	case nethtml.ElementNode:
		if skippedTags[n.Data] {
			return
		}
	}

	mark := len(c.lines)
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		walkNet(c, child)
	}
	if n.Type == nethtml.ElementNode && headingTags[n.Data] {
		c.heading(mark)
	}
}
