package extract

import (
	"context"
	"fmt"
	"io"

	"github.com/cloudwego/eino/components/document/parser"
	"github.com/cloudwego/eino/schema"
)

const (
	MetaDocType = "doc_type"
	MetaURI     = "uri"
)

var _ parser.Parser = (*Parser)(nil)

// Parser exposes Extract as an eino document parser. The type tag is derived from
// the URI passed with parser.WithURI.
type Parser struct{}

// Parse reads the whole document and returns it as a single schema.Document.
func (p *Parser) Parse(ctx context.Context, reader io.Reader, opts ...parser.Option) ([]*schema.Document, error) {
	options := parser.GetCommonOptions(&parser.Options{}, opts...)
	tag, err := TypeFromFilename(options.URI)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", options.URI, err)
	}
	text, err := Extract(data, tag)
	if err != nil {
		return nil, err
	}
	meta := make(map[string]any, len(options.ExtraMeta)+2)
	for k, v := range options.ExtraMeta {
		meta[k] = v
	}
	meta[MetaDocType] = string(tag)
	meta[MetaURI] = options.URI
	return []*schema.Document{{
		ID:       options.URI,
		Content:  text,
		MetaData: meta,
	}}, nil
}
