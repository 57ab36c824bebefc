// Package sim is an in-memory trading page. It backs DRY_RUN mode and the
// executor tests: clicks place entries, entries are counted like the real
// timer markers, and missing elements cost their full wait on the clock.
package sim

import (
	"context"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	"theoption-trader/internal/clock"
	"theoption-trader/internal/interfaces"
	"theoption-trader/internal/store"
	"theoption-trader/internal/types"
)

// Layout names the selectors the page answers to.
type Layout struct {
	Amount   string
	Buy      string
	Sell     string
	Purchase string
	Toggle   string
	Dropdown string
	Options  string
	Entry    string
	Asset    string
}

func LayoutFrom(s store.SiteSettings) Layout {
	return Layout{
		Amount:   s.AmountInputSelector,
		Buy:      s.BuyButtonSelector,
		Sell:     s.SellButtonSelector,
		Purchase: s.PurchaseButtonSelector,
		Toggle:   s.OneClickToggleSelector,
		Dropdown: s.TimeDropdownSelector,
		Options:  s.TimeListSelector,
		Entry:    s.EntrySelector,
		Asset:    s.AssetSelector,
	}
}

// Setup is the initial page state.
type Setup struct {
	Entries  int
	OneClick bool
	Asset    string
	Expiries []string
	// Expiry is the initially selected expiry label.
	Expiry string
	// Missing selectors never become clickable.
	Missing []string
	// Accept decides whether the n-th order placement (1-based) shows up
	// as an entry. Nil accepts everything.
	Accept func(n int) bool
}

type Page struct {
	mu     sync.Mutex
	clock  clock.Clock
	layout Layout
	setup  Setup

	entries      int
	placements   int
	oneClick     bool
	ticketOpen   bool
	dropdownOpen bool
	amount       string
	expiry       string
	url          string
	resets       int
	closed       bool
	clicks       map[string]int
	amounts      []string
}

var _ interfaces.Session = (*Page)(nil)

func New(layout Layout, clk clock.Clock, setup Setup) *Page {
	if clk == nil {
		clk = clock.Real{}
	}
	if setup.Asset == "" {
		setup.Asset = "USD/JPY"
	}
	if len(setup.Expiries) == 0 {
		setup.Expiries = []string{"1分", "3分", "5分", "15分"}
	}
	expiry := setup.Expiry
	if expiry == "" {
		expiry = setup.Expiries[0]
	}
	return &Page{
		clock:    clk,
		layout:   layout,
		setup:    setup,
		entries:  setup.Entries,
		oneClick: setup.OneClick,
		expiry:   expiry,
		clicks:   make(map[string]int),
	}
}

func (p *Page) FindClickable(ctx context.Context, selector string, timeout time.Duration) (interfaces.Element, error) {
	els, err := p.FindAll(ctx, selector)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		if err := p.clock.Sleep(ctx, timeout); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", selector, types.ErrElementTimeout)
	}
	return els[0], nil
}

func (p *Page) FindAll(ctx context.Context, selector string) ([]interfaces.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, fmt.Errorf("session closed")
	}
	if selector == "" || p.isMissing(selector) {
		return nil, nil
	}

	n := 0
	switch selector {
	case p.layout.Entry:
		n = p.entries
	case p.layout.Purchase:
		if !p.oneClick {
			n = 1
		}
	case p.layout.Options:
		if p.dropdownOpen {
			n = len(p.setup.Expiries)
		}
	case p.layout.Amount, p.layout.Buy, p.layout.Sell, p.layout.Toggle, p.layout.Dropdown, p.layout.Asset:
		n = 1
	}

	els := make([]interfaces.Element, n)
	for i := range els {
		els[i] = &element{page: p, selector: selector, index: i}
	}
	return els, nil
}

func (p *Page) isMissing(selector string) bool {
	for _, m := range p.setup.Missing {
		if m == selector {
			return true
		}
	}
	return false
}

func (p *Page) click(e *element) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clicks[e.selector]++

	switch e.selector {
	case p.layout.Buy, p.layout.Sell:
		if p.oneClick {
			p.place()
		} else {
			p.ticketOpen = true
		}
	case p.layout.Purchase:
		if p.oneClick {
			return fmt.Errorf("%s: element detached", e.selector)
		}
		if p.ticketOpen {
			p.place()
		}
	case p.layout.Toggle:
		p.oneClick = !p.oneClick
	case p.layout.Dropdown:
		p.dropdownOpen = true
	case p.layout.Options:
		if !p.dropdownOpen {
			return fmt.Errorf("%s: element not interactable", e.selector)
		}
		p.expiry = p.setup.Expiries[e.index]
		p.dropdownOpen = false
	}
	return nil
}

func (p *Page) place() {
	p.placements++
	if p.setup.Accept == nil || p.setup.Accept(p.placements) {
		p.entries++
	}
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	p.url = url
	p.mu.Unlock()
	return nil
}

func (p *Page) ResetStorage(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	p.resets++
	p.ticketOpen = false
	p.dropdownOpen = false
	p.mu.Unlock()
	return nil
}

// HTML renders the page with the markup of the live trading screen.
func (p *Page) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	var b strings.Builder
	b.WriteString("<html><body>")
	fmt.Fprintf(&b, `<div class="assetsListWrap"><ul><li>EUR/USD</li><li class="selected"><span class="assetName">%s</span></li></ul></div>`,
		html.EscapeString(p.setup.Asset))
	fmt.Fprintf(&b, `<div class="time-select"><span class="current-time">%s</span><ul class="time-list">`, html.EscapeString(p.expiry))
	for _, e := range p.setup.Expiries {
		fmt.Fprintf(&b, "<li>%s</li>", html.EscapeString(e))
	}
	b.WriteString("</ul></div><div class=\"entries\">")
	for i := 0; i < p.entries; i++ {
		b.WriteString(`<div class="timer-area"></div>`)
	}
	b.WriteString("</div></body></html>")
	return b.String(), nil
}

func (p *Page) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

// Entries returns the number of entry markers on the page.
func (p *Page) Entries() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.entries
}

// Clicks returns how often selector was clicked.
func (p *Page) Clicks(selector string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clicks[selector]
}

// Amounts returns every value typed into the amount field.
func (p *Page) Amounts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.amounts...)
}

func (p *Page) Expiry() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.expiry
}

func (p *Page) OneClick() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.oneClick
}

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *Page) Resets() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resets
}

// SetEntries simulates entries expiring or appearing outside the bot.
func (p *Page) SetEntries(n int) {
	p.mu.Lock()
	p.entries = n
	p.mu.Unlock()
}

type element struct {
	page     *Page
	selector string
	index    int
}

func (e *element) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.page.click(e)
}

func (e *element) SetValue(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p := e.page
	p.mu.Lock()
	defer p.mu.Unlock()
	if e.selector != p.layout.Amount {
		return fmt.Errorf("%s: element is not editable", e.selector)
	}
	p.amount = text
	p.amounts = append(p.amounts, text)
	return nil
}

func (e *element) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p := e.page
	p.mu.Lock()
	defer p.mu.Unlock()
	switch e.selector {
	case p.layout.Options:
		return p.setup.Expiries[e.index], nil
	case p.layout.Dropdown:
		return p.expiry, nil
	case p.layout.Asset:
		return p.setup.Asset, nil
	case p.layout.Amount:
		return p.amount, nil
	}
	return "", nil
}
