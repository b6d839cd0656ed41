package scraper

import (
	"context"

	"immo_scrooper/extract"
	"immo_scrooper/logging"
	"immo_scrooper/models"
)

const (
	DefaultMaxDepth = 3
	// minCollectionIDs distinct property ids among the links make a page a
	// collection even without a marker.
	minCollectionIDs = 8
)

// CollectionResolver expands project pages that list several units into the
// individual property pages.
type CollectionResolver struct {
	ex       *extract.Extractor
	maxDepth int
}

func NewCollectionResolver(ex *extract.Extractor, maxDepth int) *CollectionResolver {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &CollectionResolver{ex: ex, maxDepth: maxDepth}
}

func (r *CollectionResolver) IsCollection(p *extract.Page) bool {
	if r.ex.HasCollectionMarker(p) {
		return true
	}
	ids := make(map[string]bool)
	for _, l := range r.ex.PropertyLinks(p) {
		if l.ID != "" {
			ids[l.ID] = true
		}
	}
	return len(ids) >= minCollectionIDs
}

// Resolve returns the property links of p not yet visited, in document
// order. depth is the level the returned links would be fetched at; past
// the maximum depth nothing is returned.
func (r *CollectionResolver) Resolve(p *extract.Page, visited map[string]bool, depth int) []string {
	if depth > r.maxDepth {
		return nil
	}
	var out []string
	for _, l := range r.ex.PropertyLinks(p) {
		if visited[l.URL] || l.URL == p.Raw.URL || l.URL == p.Raw.RequestedURL {
			continue
		}
		out = append(out, l.URL)
	}
	return out
}

// FetchFunc fetches one URL for the walker.
type FetchFunc func(ctx context.Context, url string) (*models.RawDocument, error)

type WalkStats struct {
	Fetched             int
	FetchErrors         int
	CollectionsResolved int
}

// Walk fetches root and, while pages turn out to be collections, the
// property pages they link to. Every non-collection page is handed to visit.
// The visited set lives for one root only, so a URL is fetched at most once
// per walk and cycles end the branch.
func (r *CollectionResolver) Walk(ctx context.Context, root string, fetch FetchFunc, visit func(*extract.Page)) WalkStats {
	type item struct {
		url   string
		depth int
	}
	var stats WalkStats
	visited := make(map[string]bool)
	stack := []item{{url: root}}

	for len(stack) > 0 {
		if ctx.Err() != nil {
			return stats
		}
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[it.url] {
			continue
		}
		visited[it.url] = true

		doc, err := fetch(ctx, it.url)
		if err != nil {
			stats.FetchErrors++
			logging.Warnf("resolver", "skipping %s: %v", it.url, err)
			continue
		}
		stats.Fetched++
		visited[doc.URL] = true
		doc.CollectionHint = it.depth > 0

		p := r.ex.Parse(doc)
		if !r.IsCollection(p) {
			visit(p)
			continue
		}

		stats.CollectionsResolved++
		links := r.Resolve(p, visited, it.depth+1)
		logging.Debugf(doc.Source, "collection %s: %d units at depth %d", doc.URL, len(links), it.depth+1)
		for i := len(links) - 1; i >= 0; i-- {
			stack = append(stack, item{url: links[i], depth: it.depth + 1})
		}
	}
	return stats
}
