package parser

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// docxParagraph is one top-level body paragraph.
type docxParagraph struct {
	style string
	text  string
}

// extractDOCX joins the non-empty top-level body paragraphs with "\n".
// Paragraphs styled Heading1..Heading9 are reported as headings.
func extractDOCX(_ context.Context, path string) (*Document, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}
	defer zr.Close()

	var part *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			part = f
			break
		}
	}
	if part == nil {
		return nil, errors.New("docx: missing word/document.xml")
	}
	rc, err := part.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	paragraphs, err := readDOCXParagraphs(rc)
	if err != nil {
		return nil, fmt.Errorf("docx xml: %w", err)
	}

	var (
		lines    []string
		headings []Heading
		size     int
	)
	for _, p := range paragraphs {
		if p.text == "" {
			continue
		}
		if len(lines) > 0 {
			size++
		}
		if strings.HasPrefix(p.style, "Heading") {
			headings = append(headings, Heading{Text: p.text, Offset: size})
		}
		lines = append(lines, p.text)
		size += len(p.text)
	}
	return &Document{Text: strings.Join(lines, "\n"), Headings: headings}, nil
}

// readDOCXParagraphs walks word/document.xml and returns the paragraphs that
// are direct children of w:body. Every w:t below a paragraph counts, at any
// depth, so runs inside hyperlinks, insertions, smart tags and content
// controls are kept. w:tab becomes "\t"; w:br and w:cr become "\n".
func readDOCXParagraphs(r io.Reader) ([]docxParagraph, error) {
	dec := xml.NewDecoder(r)

	var (
		out    []docxParagraph
		stack  []string
		para   = -1 // stack depth of the open top-level paragraph
		inText bool
		style  string
		b      strings.Builder
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			if para >= 0 {
				switch name {
				case "t":
					inText = true
				case "tab":
					b.WriteByte('\t')
				case "br", "cr":
					b.WriteByte('\n')
				case "pStyle":
					for _, a := range t.Attr {
						if a.Name.Local == "val" {
							style = a.Value
						}
					}
				case "Fallback", "delText", "instrText":
					// Fallback repeats the preferred AlternateContent choice.
					if err := dec.Skip(); err != nil {
						return nil, err
					}
					continue
				}
			} else if name == "p" && len(stack) == 2 && stack[1] == "body" {
				para = len(stack)
				style = ""
				b.Reset()
			}
			stack = append(stack, name)

		case xml.EndElement:
			stack = stack[:len(stack)-1]
			if t.Name.Local == "t" {
				inText = false
			}
			if para >= 0 && len(stack) == para {
				out = append(out, docxParagraph{style: style, text: strings.TrimSpace(b.String())})
				para = -1
			}

		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return out, nil
}
