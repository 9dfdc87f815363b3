// Package collab defines the seams between the extraction pipeline and
// the outside services a production deployment wires in: resolving an
// arXiv path into a structured item, looking up a bibcode, harvesting a
// fallback PDF, pulling text out of one, and mapping an eprint ID to its
// subject category. Every interface here has a small default
// implementation good enough to run the pipeline standalone; a real
// deployment is expected to supply its own BibcodeResolver, Harvester and
// CategoryProvider backed by its own metadata store.
package collab

import (
	"context"

	"arxiv-refextract/internal/types"
)

// ArxivPathParser turns one line of batch input into a structured item.
type ArxivPathParser interface {
	Parse(rawPath string) (types.ArxivItem, error)
}

// BibcodeResolver looks up the bibliographic code for an item when the
// batch input line did not already supply one.
type BibcodeResolver interface {
	Resolve(ctx context.Context, item types.ArxivItem) (string, error)
}

// Harvester fetches a fallback PDF for an item when no TeX source
// compiled successfully, writing it into destDir and returning its path.
type Harvester interface {
	HarvestPDF(ctx context.Context, item types.ArxivItem, destDir string) (string, error)
}

// PDFReferenceExtractor pulls plain text out of a PDF file so the
// Reference Cleaner's marker parsers never need to know how the bytes on
// disk were produced.
type PDFReferenceExtractor interface {
	ExtractText(path string) (string, error)
}

// CategoryProvider maps an eprint ID to its primary subject category,
// filling in what a new-style arXiv ID (which carries no category in the
// identifier itself) cannot supply on its own.
type CategoryProvider interface {
	CategoryFor(eprintID string) (string, error)
}
