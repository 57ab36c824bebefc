// Package pageinfo reads the trading page's current state from its HTML:
// the selected asset, the selected expiry and the number of entries.
package pageinfo

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"theoption-trader/internal/interfaces"
	"theoption-trader/internal/store"
)

// DefaultExpirySelector matches the label of the selected expiry.
const DefaultExpirySelector = "div.time-select .current-time"

type Selectors struct {
	Asset  string
	Expiry string
	Entry  string
}

func SelectorsFrom(site store.SiteSettings) Selectors {
	return Selectors{
		Asset:  site.AssetSelector,
		Expiry: DefaultExpirySelector,
		Entry:  site.EntrySelector,
	}
}

type Info struct {
	Asset   string
	Expiry  string
	Entries int
}

// Parse extracts Info from page HTML. Missing elements leave their field
// empty; only unparsable HTML is an error.
func Parse(html string, sel Selectors) (Info, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Info{}, fmt.Errorf("parse page html: %w", err)
	}

	var info Info
	if sel.Asset != "" {
		info.Asset = firstText(doc, sel.Asset)
	}
	if sel.Expiry != "" {
		info.Expiry = firstText(doc, sel.Expiry)
	}
	if sel.Entry != "" {
		info.Entries = doc.Find(sel.Entry).Length()
	}
	return info, nil
}

// Read fetches the page HTML from the session and parses it.
func Read(ctx context.Context, page interfaces.Session, sel Selectors) (Info, error) {
	html, err := page.HTML(ctx)
	if err != nil {
		return Info{}, fmt.Errorf("read page html: %w", err)
	}
	return Parse(html, sel)
}

func firstText(doc *goquery.Document, selector string) string {
	return strings.TrimSpace(doc.Find(selector).First().Text())
}
