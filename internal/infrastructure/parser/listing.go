package parser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"FeedsImporter/internal/domain"
)

var dateExpr = regexp.MustCompile(`\d{1,2} [A-Za-z]{3} \d{4}`)

// FieldRule extracts one item field from an entry.
type FieldRule struct {
	Selector string `yaml:"selector"`
	// Attr reads an attribute instead of the text content.
	Attr string `yaml:"attr"`
	// HTML keeps the inner markup of the match.
	HTML bool `yaml:"html"`
	// Multiple collects every match as a list.
	Multiple   bool   `yaml:"multiple"`
	TrimPrefix string `yaml:"trimPrefix"`
	// Format "url" resolves relative links against the listing base; "date" parses "2 Jan 2006".
	Format string `yaml:"format"`
}

// Listing describes how to cut an HTML listing page into items.
type Listing struct {
	// Item selects the element that starts each entry.
	Item string `yaml:"item"`
	// Paired entries continue into the next sibling (dt/dd lists).
	Paired bool   `yaml:"paired"`
	Base   string `yaml:"base"`
	// Key names the field used to drop duplicate entries; empty keeps them all.
	Key    string               `yaml:"key"`
	Fields map[string]FieldRule `yaml:"fields"`
}

// ArxivListing reads arXiv category listings into guid, url, title, summary and date fields.
func ArxivListing() Listing {
	return Listing{
		Item:   "dl > dt",
		Paired: true,
		Base:   "https://arxiv.org",
		Key:    "guid",
		Fields: map[string]FieldRule{
			"guid":    {Selector: `a[href*="/abs/"]`},
			"url":     {Selector: `a[href*="/abs/"]`, Attr: "href", Format: "url"},
			"title":   {Selector: ".list-title", TrimPrefix: "Title:"},
			"summary": {Selector: "p.mathjax", HTML: true, TrimPrefix: "Abstract:"},
			"authors": {Selector: ".list-authors a", Multiple: true},
			"date":    {Selector: ".list-date", Format: "date"},
		},
	}
}

// Parse reads a listing document and returns its items in document order.
func (l Listing) Parse(r io.Reader) ([]domain.Item, error) {
	if l.Item == "" {
		return nil, domain.Configurationf("listing has no item selector")
	}

	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	items := make([]domain.Item, 0)
	seen := map[string]struct{}{}
	doc.Find(l.Item).Each(func(_ int, entry *goquery.Selection) {
		if l.Paired {
			entry = entry.AddSelection(entry.Next())
		}

		item := l.parseEntry(entry)
		if l.Key != "" {
			key, _ := item[l.Key].(string)
			if key == "" {
				return
			}
			if _, ok := seen[key]; ok {
				return
			}
			seen[key] = struct{}{}
		}
		items = append(items, item)
	})

	return items, nil
}

func (l Listing) parseEntry(entry *goquery.Selection) domain.Item {
	item := domain.Item{}
	for name, rule := range l.Fields {
		matches := entry.Find(rule.Selector)
		if !rule.Multiple {
			item[name] = l.extract(matches.First(), rule)
			continue
		}

		values := make([]any, 0, matches.Length())
		matches.Each(func(_ int, s *goquery.Selection) {
			if v := l.extract(s, rule); v != "" {
				values = append(values, v)
			}
		})
		item[name] = values
	}
	return item
}

func (l Listing) extract(s *goquery.Selection, rule FieldRule) string {
	if s.Length() == 0 {
		return ""
	}

	var text string
	switch {
	case rule.Attr != "":
		text, _ = s.Attr(rule.Attr)
	case rule.HTML:
		text, _ = s.Html()
	default:
		text = s.Text()
	}
	text = strings.TrimSpace(text)
	text = strings.TrimSpace(strings.TrimPrefix(text, rule.TrimPrefix))

	switch rule.Format {
	case "url":
		return l.absolute(text)
	case "date":
		match := dateExpr.FindString(text)
		if match == "" {
			return ""
		}
		parsed, err := time.Parse("2 Jan 2006", match)
		if err != nil {
			return ""
		}
		return parsed.Format("2006-01-02")
	}
	return text
}

func (l Listing) absolute(href string) string {
	if href == "" || l.Base == "" {
		return href
	}
	base, err := url.Parse(l.Base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// Fetcher downloads listing pages.
type Fetcher struct {
	client *http.Client
}

// NewFetcher wires an HTTP client; nil gets a client with a 20 second timeout.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &Fetcher{client: client}
}

// Fetch downloads pageURL and parses it with listing.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string, listing Listing) ([]domain.Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "FeedsImporter/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing returned %s", resp.Status)
	}

	return listing.Parse(resp.Body)
}
