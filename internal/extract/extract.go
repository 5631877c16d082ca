// Package extract turns uploaded documents into plain text.
//
// Three strategies are supported, selected by the document's type tag: plain UTF-8
// text, PDF (page texts concatenated in page order) and Word .docx (top-level
// paragraphs joined by a single newline). Extraction is a pure function of the
// input bytes and the tag.
package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"notesai/internal/models"
)

var (
	// ErrUnsupportedFormat is returned for type tags or file extensions outside
	// text, pdf and word.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrExtractionFailure is returned when a supported file cannot be parsed.
	ErrExtractionFailure = errors.New("extraction failed")
)

var extensionTypes = map[string]models.DocType{
	".txt":  models.DocText,
	".pdf":  models.DocPDF,
	".docx": models.DocWord,
}

// TypeFromFilename maps a file name's extension to its type tag.
func TypeFromFilename(name string) (models.DocType, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if tag, ok := extensionTypes[ext]; ok {
		return tag, nil
	}
	if ext == "" {
		return "", fmt.Errorf("%w: %q has no extension", ErrUnsupportedFormat, filepath.Base(name))
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
}

// Extract returns the text of data interpreted according to tag. The result is
// never nil; documents without extractable text yield "".
func Extract(data []byte, tag models.DocType) (string, error) {
	switch tag {
	case models.DocText:
		return extractText(data)
	case models.DocPDF:
		return extractPDF(data)
	case models.DocWord:
		return extractWord(data)
	default:
		return "", fmt.Errorf("%w: type %q", ErrUnsupportedFormat, tag)
	}
}

func failure(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrExtractionFailure, fmt.Sprintf(format, args...))
}
