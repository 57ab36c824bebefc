package eod

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/shopspring/decimal"
)

// Totals is the TOTAL row of a written day summary.
type Totals struct {
	Executions int
	Requested  int
	Confirmed  int
	TimedOut   int
	Skipped    int
	Stake      decimal.Decimal
}

// ReadTotals reads the TOTAL row back from a summary CSV.
func ReadTotals(csvPath string) (Totals, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return Totals{}, err
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return Totals{}, err
	}
	for _, r := range rows {
		if len(r) < 9 || r[0] != "TOTAL" {
			continue
		}
		var t Totals
		ints := []*int{&t.Executions, &t.Requested, &t.Confirmed}
		for i, p := range ints {
			if *p, err = strconv.Atoi(r[1+i]); err != nil {
				return Totals{}, fmt.Errorf("summary %s: column %d: %w", csvPath, 1+i, err)
			}
		}
		if t.TimedOut, err = strconv.Atoi(r[5]); err != nil {
			return Totals{}, fmt.Errorf("summary %s: timed_out: %w", csvPath, err)
		}
		if t.Skipped, err = strconv.Atoi(r[6]); err != nil {
			return Totals{}, fmt.Errorf("summary %s: skipped: %w", csvPath, err)
		}
		if t.Stake, err = decimal.NewFromString(r[8]); err != nil {
			return Totals{}, fmt.Errorf("summary %s: stake: %w", csvPath, err)
		}
		return t, nil
	}
	return Totals{}, fmt.Errorf("summary %s has no TOTAL row", csvPath)
}
