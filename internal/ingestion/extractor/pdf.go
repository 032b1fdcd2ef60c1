package extractor

import (
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// Page is one logical page's extracted text. Number is the zero-based page
// index in the source document, preserved even when blank pages in between
// are dropped.
type Page struct {
	Number int
	Text   string
}

// PageExtractor turns raw document bytes into per-page text. It exists as
// a function type so the pipeline can be exercised without the PDF
// rendering library.
type PageExtractor func(raw []byte) (pages []Page, totalPages int, err error)

// ExtractPDFPages extracts text per page, discarding pages with no text.
// totalPages is the document's physical page count including blank pages.
func ExtractPDFPages(raw []byte) ([]Page, int, error) {
	doc, err := fitz.NewFromMemory(raw)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	total := doc.NumPage()
	pages := make([]Page, 0, total)
	for i := 0; i < total; i++ {
		text, err := doc.Text(i)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to extract page %d: %w", i, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, Page{Number: i, Text: text})
	}
	return pages, total, nil
}
