package extract

import (
	"bytes"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// extractText decodes strictly: any invalid UTF-8 sequence fails the whole file
// rather than being replaced.
func extractText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return "", failure("text is not valid UTF-8")
	}
	return string(data), nil
}
