package eod

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"theoption-trader/internal/tradelog"
)

func summaryCSVPath(t time.Time) string {
	return filepath.Join(tradelog.LogDir(), "summary", t.Format("2006-01-02")+".csv")
}

// stake returns amount * confirmed. Unparsable amounts count as zero.
func stake(amount string, confirmed int) decimal.Decimal {
	d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(amount), ",", ""))
	if err != nil {
		return decimal.Zero
	}
	return d.Mul(decimal.NewFromInt(int64(confirmed)))
}
