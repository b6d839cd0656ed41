package scraper

import (
	"context"
	"net/url"
	"strconv"

	"immo_scrooper/config"
	"immo_scrooper/extract"
	"immo_scrooper/logging"
)

// pageURL sets the page parameter on a search URL. Page 1 is the URL as
// configured.
func pageURL(search, param string, page int) string {
	if page <= 1 {
		return search
	}
	u, err := url.Parse(search)
	if err != nil {
		return search
	}
	q := u.Query()
	q.Set(param, strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String()
}

// discoverListings walks the search result pages of a site and returns the
// property URLs in discovery order. A page without new links ends that
// search early.
func discoverListings(ctx context.Context, site *config.SiteConfig, ex *extract.Extractor, fetch FetchFunc) ([]string, int) {
	seen := make(map[string]bool)
	var (
		urls   []string
		errors int
	)
	for _, search := range site.SearchURLs {
		for page := 1; page <= site.MaxPages; page++ {
			if ctx.Err() != nil {
				return urls, errors
			}
			target := pageURL(search, site.PageParam, page)
			doc, err := fetch(ctx, target)
			if err != nil {
				errors++
				logging.Warnf(site.Source, "search page %s: %v", target, err)
				break
			}

			fresh := 0
			for _, l := range ex.PropertyLinks(ex.Parse(doc)) {
				if seen[l.URL] {
					continue
				}
				seen[l.URL] = true
				urls = append(urls, l.URL)
				fresh++
			}
			logging.Debugf(site.Source, "search page %d of %s: %d new links", page, search, fresh)
			if fresh == 0 {
				break
			}
		}
	}
	return urls, errors
}
