package eod

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"theoption-trader/internal/tradelog"
)

type eodSummarizer struct {
	now func() time.Time
}

// SummarizeDay writes a per-direction CSV summary of t's trade journal.
// It returns "" without error when no trades were journaled that day.
func (s *eodSummarizer) SummarizeDay(t time.Time) (string, error) {
	f, err := os.Open(tradelog.DailyFilepath(t))
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer f.Close()

	aggs := map[string]*aggRow{}
	stakes := map[string]decimal.Decimal{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var tl tradeLine
		if err := json.Unmarshal(sc.Bytes(), &tl); err != nil {
			continue
		}
		row := aggs[tl.Direction]
		if row == nil {
			row = &aggRow{Direction: tl.Direction}
			aggs[tl.Direction] = row
		}
		row.Executions++
		row.Requested += tl.Requested
		row.Confirmed += tl.Confirmed
		row.ElapsedMs += tl.ElapsedMs
		if tl.TimedOut {
			row.TimedOut++
		}
		if tl.Skipped {
			row.Skipped++
		}
		stakes[tl.Direction] = stakes[tl.Direction].Add(stake(tl.Amount, tl.Confirmed))
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	if len(aggs) == 0 {
		return "", nil
	}

	keys := make([]string, 0, len(aggs))
	for k := range aggs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	outPath := summaryCSVPath(t)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", err
	}
	out, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	defer out.Close()

	w := csv.NewWriter(out)
	headers := []string{"direction", "executions", "requested", "confirmed", "fill_rate", "timed_out", "skipped", "avg_elapsed_ms", "stake"}
	if err := w.Write(headers); err != nil {
		return "", err
	}

	var total aggRow
	totalStake := decimal.Zero
	for _, k := range keys {
		r := aggs[k]
		r.Stake = stakes[k].String()
		if err := w.Write(row(r)); err != nil {
			return "", err
		}
		total.Executions += r.Executions
		total.Requested += r.Requested
		total.Confirmed += r.Confirmed
		total.TimedOut += r.TimedOut
		total.Skipped += r.Skipped
		total.ElapsedMs += r.ElapsedMs
		totalStake = totalStake.Add(stakes[k])
	}
	total.Direction = "TOTAL"
	total.Stake = totalStake.String()
	if err := w.Write(row(&total)); err != nil {
		return "", err
	}
	w.Flush()
	return outPath, w.Error()
}

func (s *eodSummarizer) SummarizeToday() (string, error) {
	return s.SummarizeDay(s.now())
}

func row(r *aggRow) []string {
	fill := 0.0
	if r.Requested > 0 {
		fill = float64(r.Confirmed) / float64(r.Requested)
	}
	var avg int64
	if r.Executions > 0 {
		avg = r.ElapsedMs / int64(r.Executions)
	}
	return []string{
		r.Direction,
		strconv.Itoa(r.Executions),
		strconv.Itoa(r.Requested),
		strconv.Itoa(r.Confirmed),
		strconv.FormatFloat(fill, 'f', 3, 64),
		strconv.Itoa(r.TimedOut),
		strconv.Itoa(r.Skipped),
		strconv.FormatInt(avg, 10),
		r.Stake,
	}
}
