// Package preflight checks that the trading site answers before the
// browser is launched against it.
package preflight

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"theoption-trader/internal/logger"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

type Result struct {
	URL     string
	Status  int
	Title   string
	Elapsed time.Duration
}

// Probe fetches url once and reports its status and page title. A non-2xx
// answer returns the result together with an error.
func Probe(ctx context.Context, url string, timeout time.Duration) (Result, error) {
	res := Result{URL: url}
	if strings.TrimSpace(url) == "" {
		return res, fmt.Errorf("preflight: empty url")
	}

	c := colly.NewCollector(
		colly.MaxDepth(1),
		colly.Async(false),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(timeout)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", userAgent)
	})
	c.OnResponse(func(r *colly.Response) {
		res.Status = r.StatusCode
	})
	c.OnHTML("title", func(e *colly.HTMLElement) {
		if res.Title == "" {
			res.Title = strings.TrimSpace(e.Text)
		}
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			res.Status = r.StatusCode
		}
	})

	start := time.Now()
	err := c.Visit(url)
	c.Wait()
	res.Elapsed = time.Since(start)

	if err != nil {
		logger.Warn(ctx, "Preflight probe failed", "url", url, "status", res.Status, "error", err.Error())
		return res, fmt.Errorf("preflight %s: %w", url, err)
	}
	logger.Info(ctx, "Preflight probe ok", "url", url, "status", res.Status, "title", res.Title, "elapsed_ms", res.Elapsed.Milliseconds())
	return res, nil
}
