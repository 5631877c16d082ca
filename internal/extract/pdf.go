package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// pageSource is a paged document whose pages are addressed from 0.
type pageSource interface {
	NumPage() int
	PageText(i int) (string, error)
}

type pdfPages struct {
	r *pdf.Reader
}

func (p pdfPages) NumPage() int {
	return p.r.NumPage()
}

func (p pdfPages) PageText(i int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page %d: %v", i, r)
		}
	}()
	page := p.r.Page(i + 1)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}

func extractPDF(data []byte) (text string, err error) {
	if len(data) == 0 {
		return "", failure("empty pdf")
	}
	defer func() {
		if r := recover(); r != nil {
			text, err = "", failure("corrupt pdf: %v", r)
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", failure("open pdf: %v", err)
	}
	return concatPages(pdfPages{r: reader}), nil
}

// concatPages appends every page's text in ascending page order with no separator.
// A page that cannot be read contributes nothing.
func concatPages(src pageSource) string {
	var b strings.Builder
	for i := 0; i < src.NumPage(); i++ {
		text, err := src.PageText(i)
		if err != nil {
			continue
		}
		b.WriteString(text)
	}
	return b.String()
}
