// Package errlog keeps a categorized JSON journal of operational errors and
// reads it back for the error summary and tail views.
package errlog

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Category string

const (
	Browser    Category = "Browser"
	Driver     Category = "Driver"
	Automation Category = "Automation"
	Trading    Category = "Trading"
	Config     Category = "Config"
	Schedule   Category = "Schedule"
)

// DefaultFile is the journal file name inside the log directory.
const DefaultFile = "errors.jsonl"

type Journal struct {
	path string
	sink *lumberjack.Logger
	log  *zap.Logger
}

// Open returns a journal appending to path, rotated at maxSizeMB with
// maxBackups old files kept.
func Open(path string, maxSizeMB, maxBackups int) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create error log dir: %w", err)
	}
	sink := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
	}

	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "ts"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(sink), zapcore.WarnLevel)

	log := zap.New(core).With(
		zap.String("os", runtime.GOOS),
		zap.String("arch", runtime.GOARCH),
		zap.String("go_version", runtime.Version()),
	)
	return &Journal{path: path, sink: sink, log: log}, nil
}

func (j *Journal) Path() string { return j.path }

// Record writes one error entry. err and fields are optional.
func (j *Journal) Record(cat Category, msg string, err error, fields ...zap.Field) {
	if j == nil {
		return
	}
	fs := make([]zap.Field, 0, len(fields)+2)
	fs = append(fs, zap.String("category", string(cat)))
	if err != nil {
		fs = append(fs, zap.Error(err))
	}
	fs = append(fs, fields...)
	j.log.Error(msg, fs...)
}

func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	_ = j.log.Sync()
	return j.sink.Close()
}

// Entry is one decoded journal line.
type Entry struct {
	Time     string   `json:"ts"`
	Level    string   `json:"level"`
	Category Category `json:"category"`
	Message  string   `json:"msg"`
	Error    string   `json:"error,omitempty"`
}

func (e Entry) String() string {
	s := fmt.Sprintf("%s [%s] %s", e.Time, e.Category, e.Message)
	if e.Error != "" {
		s += ": " + e.Error
	}
	return s
}

type Summary struct {
	Total  int
	Counts map[Category]int
	// Latest holds the most recent entries per category, oldest first.
	Latest map[Category][]Entry
}

// Summarize reads the journal at path and counts entries per category,
// keeping the last keep entries of each.
func Summarize(path string, keep int) (Summary, error) {
	s := Summary{Counts: map[Category]int{}, Latest: map[Category][]Entry{}}
	entries, err := readEntries(path)
	if err != nil {
		return s, err
	}
	for _, e := range entries {
		s.Total++
		s.Counts[e.Category]++
		latest := append(s.Latest[e.Category], e)
		if keep > 0 && len(latest) > keep {
			latest = latest[len(latest)-keep:]
		}
		s.Latest[e.Category] = latest
	}
	return s, nil
}

// Categories returns the categories present, most frequent first.
func (s Summary) Categories() []Category {
	out := make([]Category, 0, len(s.Counts))
	for c := range s.Counts {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if s.Counts[out[i]] != s.Counts[out[j]] {
			return s.Counts[out[i]] > s.Counts[out[j]]
		}
		return out[i] < out[j]
	})
	return out
}

func (s Summary) Print(w io.Writer) {
	fmt.Fprintf(w, "Total errors: %d\n", s.Total)
	for _, c := range s.Categories() {
		fmt.Fprintf(w, "  %-10s %d\n", c, s.Counts[c])
	}
	for _, c := range s.Categories() {
		fmt.Fprintf(w, "\nLatest %s errors:\n", c)
		for _, e := range s.Latest[c] {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
}

// Tail returns the last n journal entries, oldest first.
func Tail(path string, n int) ([]Entry, error) {
	entries, err := readEntries(path)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	return entries, nil
}

// readEntries decodes every line of the journal. A missing journal reads
// as empty; undecodable lines are skipped.
func readEntries(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open error log: %w", err)
	}
	defer f.Close()

	var out []Entry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("read error log: %w", err)
	}
	return out, nil
}
