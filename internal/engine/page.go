package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"theoption-trader/internal/interfaces"
	"theoption-trader/internal/logger"
	"theoption-trader/internal/types"
)

// count returns the number of elements matching selector.
func (r *run) count(ctx context.Context, selector string) (int, error) {
	els, err := r.exec.browser.FindAll(ctx, selector)
	if err != nil {
		return 0, err
	}
	return len(els), nil
}

// find waits for selector, never longer than the remaining budget.
func (r *run) find(ctx context.Context, selector string, timeout time.Duration) (interfaces.Element, error) {
	return r.exec.browser.FindClickable(ctx, selector, r.capped(timeout))
}

// tryClick clicks selector once. Lookup and click failures count as a
// click without effect; the confirmation retry is the only recovery.
func (r *run) tryClick(ctx context.Context, selector string, timeout time.Duration) bool {
	el, err := r.find(ctx, selector, timeout)
	if err == nil {
		err = el.Click(ctx)
	}
	if err != nil {
		logger.Debug(ctx, "Click had no effect",
			"run_id", r.out.RunID,
			"selector", selector,
			"error", err,
		)
		return false
	}
	return true
}

// setAmount focuses the amount field and replaces its content.
func (r *run) setAmount(ctx context.Context, amount string) error {
	el, err := r.find(ctx, r.site.AmountInputSelector, amountTimeout)
	if err != nil {
		return err
	}
	if err := el.Click(ctx); err != nil {
		return err
	}
	return el.SetValue(ctx, amount)
}

// selectDuration opens the expiry dropdown and picks the option whose
// label matches. Labels match when either contains the other.
//
// Parameters:
//   - ctx: Context for logging and tracing
//   - label: Expiry label such as "1分" or "5 minutes"
//
// Returns:
//   - err: Error if the dropdown or the option could not be used
func (r *run) selectDuration(ctx context.Context, label string) error {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil
	}
	if r.site.TimeDropdownSelector == "" || r.site.TimeListSelector == "" {
		return &types.ConfigurationError{Setting: "time_dropdown_selector", Reason: "expiry selection not configured"}
	}

	dropdown, err := r.find(ctx, r.site.TimeDropdownSelector, dropdownTimeout)
	if err != nil {
		return err
	}
	if err := dropdown.Click(ctx); err != nil {
		return err
	}
	r.pause(ctx, dropdownOpenDelay)

	options, err := r.exec.browser.FindAll(ctx, r.site.TimeListSelector)
	if err != nil {
		return err
	}
	for _, opt := range options {
		text, err := opt.Text(ctx)
		if err != nil || !labelsMatch(text, label) {
			continue
		}
		if err := opt.Click(ctx); err != nil {
			return err
		}
		r.pause(ctx, selectionDelay)
		logger.Debug(ctx, "Expiry selected", "run_id", r.out.RunID, "expiry", text)
		return nil
	}
	return fmt.Errorf("expiry %q not offered among %d options", label, len(options))
}

func labelsMatch(text, label string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	return strings.Contains(text, label) || strings.Contains(label, text)
}

// oneClickActive reports whether one-click trading is on. The purchase
// button disappears while it is on. known is false when that cannot be
// told because no purchase selector is configured.
func (r *run) oneClickActive(ctx context.Context) (active, known bool) {
	if r.site.PurchaseButtonSelector == "" {
		return false, false
	}
	n, err := r.count(ctx, r.site.PurchaseButtonSelector)
	if err != nil {
		return false, false
	}
	return n == 0, true
}

// ensureOneClick switches one-click trading on when it is off.
func (r *run) ensureOneClick(ctx context.Context) error {
	active, known := r.oneClickActive(ctx)
	if !known || active {
		return nil
	}
	if r.site.OneClickToggleSelector == "" {
		return fmt.Errorf("%w: oneclick_toggle_selector not configured", types.ErrOneClickUnavailable)
	}

	if !r.tryClick(ctx, r.site.OneClickToggleSelector, toggleTimeout) {
		return fmt.Errorf("%w: toggle not clickable", types.ErrOneClickUnavailable)
	}
	r.pause(ctx, toggleSettle)

	if active, _ := r.oneClickActive(ctx); !active {
		return fmt.Errorf("%w: still off after toggling", types.ErrOneClickUnavailable)
	}
	logger.Info(ctx, "One-click trading enabled", "run_id", r.out.RunID)
	return nil
}

// readAsset returns the name of the selected asset, or "" when unknown.
func (r *run) readAsset(ctx context.Context) string {
	if r.site.AssetSelector == "" {
		return ""
	}
	els, err := r.exec.browser.FindAll(ctx, r.site.AssetSelector)
	if err != nil || len(els) == 0 {
		return ""
	}
	text, err := els[0].Text(ctx)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}
