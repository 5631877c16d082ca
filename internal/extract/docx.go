package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"
)

const documentPart = "word/document.xml"

func extractWord(data []byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", failure("open docx: %v", err)
	}
	for _, file := range reader.File {
		if file.Name != documentPart {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "", failure("open %s: %v", documentPart, err)
		}
		paragraphs, err := readParagraphs(rc)
		rc.Close()
		if err != nil {
			return "", failure("parse %s: %v", documentPart, err)
		}
		return strings.Join(paragraphs, "\n"), nil
	}
	return "", failure("%s not found", documentPart)
}

// readParagraphs streams document.xml and returns the text of each paragraph that
// is a direct child of the body, in document order. Paragraph text is the text of
// its runs, including runs wrapped in hyperlinks; nested paragraphs (tables, text
// boxes) are not included.
func readParagraphs(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)
	var (
		paragraphs []string
		stack      []string
		cur        strings.Builder
		paraDepth  = -1 // index of the open top-level w:p in stack
		inText     bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			stack = append(stack, t.Name.Local)
			if t.Name.Local == "p" && paraDepth < 0 && isBodyChild(stack) {
				paraDepth = len(stack) - 1
				cur.Reset()
				continue
			}
			if paraDepth < 0 || !inRun(stack[paraDepth+1:]) {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab", "ptab":
				cur.WriteByte('\t')
			case "cr":
				cur.WriteByte('\n')
			case "br":
				// page and column breaks carry no text
				if breakType(t) == "" || breakType(t) == "textWrapping" {
					cur.WriteByte('\n')
				}
			case "noBreakHyphen":
				cur.WriteByte('-')
			}
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, errors.New("unbalanced element " + t.Name.Local)
			}
			if t.Name.Local == "t" {
				inText = false
			}
			if len(stack)-1 == paraDepth {
				paragraphs = append(paragraphs, cur.String())
				paraDepth = -1
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if inText {
				cur.Write(t)
			}
		}
	}
	if len(stack) != 0 {
		return nil, io.ErrUnexpectedEOF
	}
	return paragraphs, nil
}

func breakType(el xml.StartElement) string {
	for _, attr := range el.Attr {
		if attr.Name.Local == "type" {
			return attr.Value
		}
	}
	return ""
}

// isBodyChild reports whether the element on top of stack sits directly in w:body.
func isBodyChild(stack []string) bool {
	n := len(stack)
	return n >= 2 && stack[n-2] == "body"
}

// inRun reports whether path, relative to the paragraph, is a run content element:
// r/x or hyperlink/r/x.
func inRun(path []string) bool {
	switch len(path) {
	case 2:
		return path[0] == "r"
	case 3:
		return path[0] == "hyperlink" && path[1] == "r"
	default:
		return false
	}
}
