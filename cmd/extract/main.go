// Command extract prints the text the service would extract from a document.
//
//	extract notes.pdf
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/cloudwego/eino-ext/components/document/loader/file"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/components/document/parser"

	"notesai/internal/extract"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: extract <file.txt|file.pdf|file.docx>")
		os.Exit(2)
	}
	ctx := context.Background()

	p := &extract.Parser{}
	extParser, err := parser.NewExtParser(ctx, &parser.ExtParserConfig{
		Parsers: map[string]parser.Parser{
			".txt":  p,
			".pdf":  p,
			".docx": p,
		},
		FallbackParser: p,
	})
	if err != nil {
		log.Fatalf("init parser: %v", err)
	}
	loader, err := file.NewFileLoader(ctx, &file.FileLoaderConfig{
		UseNameAsID: true,
		Parser:      extParser,
	})
	if err != nil {
		log.Fatalf("init loader: %v", err)
	}

	docs, err := loader.Load(ctx, document.Source{URI: os.Args[1]})
	if err != nil {
		log.Fatalf("extract %s: %v", os.Args[1], err)
	}
	for _, doc := range docs {
		fmt.Println(doc.Content)
	}
}
