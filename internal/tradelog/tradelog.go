package tradelog

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var (
	mu  sync.Mutex
	dir string
)

// Entry is one executed trade as written to the daily journal.
type Entry struct {
	Time      string `json:"time"`
	RunID     string `json:"run_id"`
	Scheduled string `json:"scheduled,omitempty"`
	Direction string `json:"direction"`
	Amount    string `json:"amount"`
	Expiry    string `json:"expiry,omitempty"`
	Baseline  int    `json:"baseline"`
	Requested int    `json:"requested"`
	Confirmed int    `json:"confirmed"`
	ElapsedMs int64  `json:"elapsed_ms"`
	TimedOut  bool   `json:"timed_out"`
	Skipped   bool   `json:"skipped,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Comment   string `json:"comment,omitempty"`
}

// SetDir sets the log root used when TRADER_LOG_DIR is not set.
func SetDir(d string) {
	mu.Lock()
	dir = d
	mu.Unlock()
}

func LogDir() string {
	if v := os.Getenv("TRADER_LOG_DIR"); v != "" {
		return v
	}
	if dir != "" {
		return dir
	}
	return "logs"
}

// DailyFilepath is the journal file holding the trades of t's date.
func DailyFilepath(t time.Time) string {
	return filepath.Join(LogDir(), "trades", t.Format("2006-01-02")+".txt")
}

// Append writes e as one JSON line to today's journal.
func Append(e Entry) error {
	return AppendAt(time.Now(), e)
}

func AppendAt(now time.Time, e Entry) error {
	mu.Lock()
	defer mu.Unlock()
	e.Time = now.Format("2006-01-02 15:04:05.000")
	p := DailyFilepath(now)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(f, string(b))
	return err
}

// CompressOlder gzips journal files older than retentionDays.
func CompressOlder(retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	root := filepath.Join(LogDir(), "trades")
	return filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(p) != ".txt" {
			return nil
		}
		info, err := d.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			return nil
		}
		gz := p + ".gz"
		if _, err := os.Stat(gz); err == nil {
			_ = os.Remove(p)
			return nil
		}
		if err := gzipFile(p, gz); err == nil {
			_ = os.Remove(p)
		}
		return nil
	})
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	gw := gzip.NewWriter(out)
	_, err = io.Copy(gw, in)
	if cerr := gw.Close(); err == nil {
		err = cerr
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dst)
	}
	return err
}
