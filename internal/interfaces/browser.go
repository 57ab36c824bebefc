package interfaces

import (
	"context"
	"time"
)

// Element is a located UI element.
type Element interface {
	Click(ctx context.Context) error
	SetValue(ctx context.Context, text string) error
	Text(ctx context.Context) (string, error)
}

// Browser is the element capability set the executor drives.
type Browser interface {
	// FindClickable waits up to timeout for selector to be clickable.
	// It returns types.ErrElementTimeout when the wait expires.
	FindClickable(ctx context.Context, selector string, timeout time.Duration) (Element, error)
	// FindAll returns every element matching selector without waiting.
	FindAll(ctx context.Context, selector string) ([]Element, error)
}

// Session is a whole browser session as handled by the bootstrap code.
type Session interface {
	Browser
	Navigate(ctx context.Context, url string) error
	// ResetStorage clears local and session storage and reloads the page.
	ResetStorage(ctx context.Context) error
	// HTML returns a snapshot of the current document.
	HTML(ctx context.Context) (string, error)
	Close() error
}
