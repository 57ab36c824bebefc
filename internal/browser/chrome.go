// Package browser drives a real Chrome session over the DevTools protocol.
package browser

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"

	"theoption-trader/internal/interfaces"
	"theoption-trader/internal/logger"
	"theoption-trader/internal/types"
)

// actionTimeout bounds a single action on an already located element.
const actionTimeout = 5 * time.Second

type Options struct {
	ProfileDir string
	Headless   bool
	ExecPath   string
}

// Session is a Chrome tab. It outlives the context it was launched from;
// only Close ends it.
type Session struct {
	tab         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
}

var _ interfaces.Session = (*Session)(nil)

// Launch starts Chrome with a persistent profile so the login survives
// restarts.
func Launch(ctx context.Context, opts Options) (*Session, error) {
	profile, err := filepath.Abs(opts.ProfileDir)
	if err != nil {
		return nil, fmt.Errorf("resolve profile dir: %w", err)
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserDataDir(profile),
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-notifications", true),
		chromedp.WindowSize(1400, 900),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	tab, cancelTab := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(tab); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	logger.Info(ctx, "Chrome started", "profile", profile, "headless", opts.Headless)
	return &Session{tab: tab, cancelTab: cancelTab, cancelAlloc: cancelAlloc}, nil
}

// op derives a tab context bounded by timeout that also ends with ctx.
func (s *Session) op(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	opCtx, cancel := context.WithTimeout(s.tab, timeout)
	stop := context.AfterFunc(ctx, cancel)
	return opCtx, func() {
		stop()
		cancel()
	}
}

func (s *Session) FindClickable(ctx context.Context, selector string, timeout time.Duration) (interfaces.Element, error) {
	opCtx, cancel := s.op(ctx, timeout)
	defer cancel()

	var nodes []*cdp.Node
	err := chromedp.Run(opCtx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.WaitEnabled(selector, chromedp.ByQuery),
		chromedp.Nodes(selector, &nodes, chromedp.ByQuery),
	)
	if err != nil {
		return nil, wrapWait(ctx, selector, err)
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%s: %w", selector, types.ErrElementTimeout)
	}
	return &element{s: s, node: nodes[0]}, nil
}

func (s *Session) FindAll(ctx context.Context, selector string) ([]interfaces.Element, error) {
	opCtx, cancel := s.op(ctx, actionTimeout)
	defer cancel()

	var nodes []*cdp.Node
	if err := chromedp.Run(opCtx, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return nil, fmt.Errorf("query %s: %w", selector, err)
	}
	out := make([]interfaces.Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &element{s: s, node: n})
	}
	return out, nil
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	opCtx, cancel := s.op(ctx, 30*time.Second)
	defer cancel()
	if err := chromedp.Run(opCtx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (s *Session) ResetStorage(ctx context.Context) error {
	opCtx, cancel := s.op(ctx, 30*time.Second)
	defer cancel()

	var cleared bool
	err := chromedp.Run(opCtx,
		chromedp.Evaluate(`window.localStorage.clear(); window.sessionStorage.clear(); true`, &cleared),
		chromedp.Reload(),
	)
	if err != nil {
		return fmt.Errorf("reset storage: %w", err)
	}
	return nil
}

func (s *Session) HTML(ctx context.Context) (string, error) {
	opCtx, cancel := s.op(ctx, actionTimeout)
	defer cancel()

	var html string
	if err := chromedp.Run(opCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read html: %w", err)
	}
	return html, nil
}

func (s *Session) Close() error {
	s.cancelTab()
	s.cancelAlloc()
	return nil
}

type element struct {
	s    *Session
	node *cdp.Node
}

func (e *element) ids() []cdp.NodeID {
	return []cdp.NodeID{e.node.NodeID}
}

func (e *element) Click(ctx context.Context) error {
	opCtx, cancel := e.s.op(ctx, actionTimeout)
	defer cancel()
	if err := chromedp.Run(opCtx, chromedp.Click(e.ids(), chromedp.ByNodeID)); err != nil {
		return fmt.Errorf("click: %w", err)
	}
	return nil
}

func (e *element) SetValue(ctx context.Context, text string) error {
	opCtx, cancel := e.s.op(ctx, actionTimeout)
	defer cancel()
	err := chromedp.Run(opCtx,
		chromedp.SetValue(e.ids(), "", chromedp.ByNodeID),
		chromedp.SendKeys(e.ids(), text, chromedp.ByNodeID),
	)
	if err != nil {
		return fmt.Errorf("set value: %w", err)
	}
	return nil
}

func (e *element) Text(ctx context.Context) (string, error) {
	opCtx, cancel := e.s.op(ctx, actionTimeout)
	defer cancel()
	var text string
	if err := chromedp.Run(opCtx, chromedp.Text(e.ids(), &text, chromedp.ByNodeID)); err != nil {
		return "", fmt.Errorf("read text: %w", err)
	}
	return text, nil
}

// wrapWait maps an expired element wait to types.ErrElementTimeout. A
// cancelled caller context is returned as is.
func wrapWait(ctx context.Context, selector string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", selector, types.ErrElementTimeout)
	}
	return fmt.Errorf("wait for %s: %w", selector, err)
}
