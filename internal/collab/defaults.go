package collab

import (
	"context"

	"arxiv-refextract/internal/apperr"
	"arxiv-refextract/internal/types"
)

// NullHarvester never fetches a fallback PDF. It is the default when a
// deployment has no document store to harvest from, matching the
// orchestrator's --no-harvest flag behavior even when the flag is unset.
type NullHarvester struct{}

// HarvestPDF implements Harvester by always failing with a non-fatal
// error, letting the orchestrator's fallback logic treat it exactly like
// a harvest attempt that found nothing.
func (NullHarvester) HarvestPDF(_ context.Context, item types.ArxivItem, _ string) (string, error) {
	return "", apperr.Newf(apperr.SourceMissing, "no harvester configured for %s", item.EprintID)
}

// NullBibcodeResolver never resolves a bibcode. Jobs that arrive without
// one and run under this resolver are rejected rather than silently
// proceeding with an empty label.
type NullBibcodeResolver struct{}

// Resolve implements BibcodeResolver.
func (NullBibcodeResolver) Resolve(_ context.Context, item types.ArxivItem) (string, error) {
	return "", apperr.Newf(apperr.BibcodeUnresolved, "no bibcode resolver configured for %s", item.EprintID)
}

// StaticCategoryProvider answers CategoryFor from a fixed lookup table
// supplied at construction, for deployments that already know every
// eprint ID's category ahead of time (e.g. from the same manifest that
// produced the batch input file).
type StaticCategoryProvider struct {
	categories map[string]string
}

// NewStaticCategoryProvider builds a StaticCategoryProvider from a
// caller-owned eprintID-to-category map.
func NewStaticCategoryProvider(categories map[string]string) StaticCategoryProvider {
	return StaticCategoryProvider{categories: categories}
}

// CategoryFor implements CategoryProvider.
func (p StaticCategoryProvider) CategoryFor(eprintID string) (string, error) {
	if cat, ok := p.categories[eprintID]; ok {
		return cat, nil
	}
	return "", apperr.Newf(apperr.InputMalformed, "no category known for %s", eprintID)
}
