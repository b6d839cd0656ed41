package extract

import (
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"immo_scrooper/logging"
	"immo_scrooper/models"
)

type Options struct {
	TwoDigitYearCutoff int
	Now                func() time.Time
}

// Extractor turns raw pages of one source into candidate records.
type Extractor struct {
	profile *Profile
	years   YearParser
}

func New(source string, opts Options) *Extractor {
	years := NewYearParser(opts.TwoDigitYearCutoff)
	if opts.Now != nil {
		years.Now = opts.Now
	}
	return &Extractor{profile: ProfileFor(source), years: years}
}

func (e *Extractor) Profile() *Profile { return e.profile }

// Page is a parsed document shared by extraction and collection detection.
type Page struct {
	Raw      *models.RawDocument
	DOM      *goquery.Document
	Text     string
	embedded map[models.Field]rawValue
}

// Parse builds a Page. Malformed markup yields an empty page, never an error.
func (e *Extractor) Parse(doc *models.RawDocument) *Page {
	dom, err := goquery.NewDocumentFromReader(strings.NewReader(doc.Body))
	if err != nil {
		logging.Warnf(doc.Source, "parse %s: %v", doc.URL, err)
		dom, _ = goquery.NewDocumentFromReader(strings.NewReader(""))
	}
	p := &Page{Raw: doc, DOM: dom}
	p.embedded = e.embeddedValues(dom)
	p.Text = visibleText(dom)
	return p
}

// Extract runs the cascade over every field. It never fails: a page with
// nothing recognisable produces an empty record.
func (e *Extractor) Extract(doc *models.RawDocument) *models.CandidateRecord {
	return e.ExtractPage(e.Parse(doc))
}

type strategyFunc func(e *Extractor, p *Page, f models.Field) []rawValue

// cascade lists the strategies in trust order. A later strategy runs for a
// field only when every earlier one produced nothing valid.
var cascade = []struct {
	strategy models.Strategy
	values   strategyFunc
}{
	{models.StrategyEmbedded, (*Extractor).embeddedFor},
	{models.StrategySelector, (*Extractor).selectorsFor},
	{models.StrategyPattern, (*Extractor).patternsFor},
}

func (e *Extractor) ExtractPage(p *Page) (rec *models.CandidateRecord) {
	rec = models.NewCandidateRecord(p.Raw.URL, p.Raw.Source)
	defer func() {
		if r := recover(); r != nil {
			logging.Errorf(p.Raw.Source, "extract %s: %v", p.Raw.URL, r)
		}
	}()

	for _, f := range extractedFields {
		e.extractField(p, rec, f)
	}
	e.deriveFromAddress(rec)
	e.resolveImageURL(p, rec)
	return rec
}

func (e *Extractor) extractField(p *Page, rec *models.CandidateRecord, f models.Field) {
	for _, step := range cascade {
		for _, rv := range step.values(e, p, f) {
			res := e.value(f, rv, step.strategy)
			if res.onRequest {
				rec.PriceOnRequest = true
			}
			if res.ok {
				rec.Set(f, res.candidate)
				return
			}
		}
	}
}

func (e *Extractor) embeddedFor(p *Page, f models.Field) []rawValue {
	if rv, ok := p.embedded[f]; ok {
		return []rawValue{rv}
	}
	return nil
}

func (e *Extractor) selectorsFor(p *Page, f models.Field) []rawValue {
	var out []rawValue
	for _, sel := range e.profile.selectorsFor(f) {
		css, attr, _ := strings.Cut(sel, "@")
		matches := p.DOM.Find(css)
		if matches.Length() == 0 {
			continue
		}
		if f == models.FieldSpecialFeatures {
			var items []string
			matches.Each(func(_ int, s *goquery.Selection) {
				if t := cleanText(s.Text()); t != "" {
					items = append(items, t)
				}
			})
			out = append(out, textValue(strings.Join(items, ", ")))
			continue
		}
		matches.Each(func(_ int, s *goquery.Selection) {
			if attr != "" {
				if v, ok := s.Attr(attr); ok {
					out = append(out, textValue(v))
				}
				return
			}
			out = append(out, textValue(s.Text()))
		})
	}
	return out
}

func (e *Extractor) patternsFor(p *Page, f models.Field) []rawValue {
	if f == models.FieldYearBuilt {
		if y, ok := e.years.FromLabeledText(p.Text); ok {
			return []rawValue{numValue(float64(y))}
		}
		return nil
	}
	var out []rawValue
	for _, v := range patternValues(f, p.Text) {
		out = append(out, textValue(v))
	}
	return out
}

// deriveFromAddress fills the district from the address when no tier found
// one directly. The derived value keeps the address's trust tier.
func (e *Extractor) deriveFromAddress(rec *models.CandidateRecord) {
	if rec.Has(models.FieldDistrict) {
		return
	}
	addr, ok := rec.Get(models.FieldAddress)
	if !ok {
		return
	}
	if code, ok := DistrictCode(addr.Text); ok {
		rec.Set(models.FieldDistrict, models.Candidate{Text: code, Strategy: addr.Strategy})
	}
}

func (e *Extractor) resolveImageURL(p *Page, rec *models.CandidateRecord) {
	c, ok := rec.Get(models.FieldImageURL)
	if !ok {
		return
	}
	if abs, ok := AbsoluteURL(p.Raw.URL, c.Text); ok {
		c.Text = abs
		rec.Fields[models.FieldImageURL] = c
	}
}

// visibleText returns the page text one text node per line, without
// script and style content.
func visibleText(dom *goquery.Document) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "template", "head":
				return
			}
		}
		if n.Type == html.TextNode {
			if t := cleanText(n.Data); t != "" {
				b.WriteString(t)
				b.WriteByte('\n')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range dom.Nodes {
		walk(n)
	}
	return b.String()
}

// AbsoluteURL resolves ref against base.
func AbsoluteURL(base, ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "javascript:") || strings.HasPrefix(ref, "#") {
		return "", false
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	if r.IsAbs() {
		return r.String(), true
	}
	b, err := url.Parse(base)
	if err != nil || !b.IsAbs() {
		return "", false
	}
	return b.ResolveReference(r).String(), true
}

// Link is a discovered property link.
type Link struct {
	URL string
	ID  string
}

// PropertyLinks returns the distinct property links on a page in document
// order, resolved to absolute URLs.
func (e *Extractor) PropertyLinks(p *Page) []Link {
	base := p.Raw.URL
	if base == "" {
		base = e.profile.BaseURL
	}
	seen := make(map[string]bool)
	var links []Link
	for _, sel := range e.profile.LinkSelectors {
		p.DOM.Find(sel).Each(func(_ int, s *goquery.Selection) {
			href, _ := s.Attr("href")
			abs, ok := AbsoluteURL(base, href)
			if !ok {
				return
			}
			abs = stripFragment(abs)
			if seen[abs] {
				return
			}
			seen[abs] = true
			id, _ := e.profile.PropertyIDFromURL(abs)
			links = append(links, Link{URL: abs, ID: id})
		})
	}
	return links
}

// HasCollectionMarker reports a project-overview marker element or phrase.
func (e *Extractor) HasCollectionMarker(p *Page) bool {
	for _, sel := range e.profile.collectionMarkers() {
		if p.DOM.Find(sel).Length() > 0 {
			return true
		}
	}
	lower := strings.ToLower(p.Text)
	for _, phrase := range collectionPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func stripFragment(u string) string {
	if i := strings.IndexByte(u, '#'); i >= 0 {
		return u[:i]
	}
	return u
}
