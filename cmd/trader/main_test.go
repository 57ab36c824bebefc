package main

import (
	"bufio"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"theoption-trader/internal/errlog"
)

func TestShowLogs(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TRADER_LOG_DIR", dir)

	path := filepath.Join(dir, errlog.DefaultFile)
	j, err := errlog.Open(path, 1, 1)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	j.Record(errlog.Automation, "purchase button not clickable", nil)
	j.Record(errlog.Config, "config reload failed", nil)
	_ = j.Close()

	var out strings.Builder
	if err := showLogs(&out, path); err != nil {
		t.Fatalf("showLogs failed: %v", err)
	}
	got := out.String()
	for _, want := range []string{"Total errors: 2", "purchase button not clickable", "No trades journaled today."} {
		if !strings.Contains(got, want) {
			t.Errorf("Expected output to contain %q, got %q", want, got)
		}
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		yes   bool
		want  bool
	}{
		{"y\n", false, true},
		{"YES\n", false, true},
		{"n\n", false, false},
		{"\n", false, false},
		{"", true, true},
	}
	for _, tt := range tests {
		a := &app{yes: tt.yes, in: bufio.NewReader(strings.NewReader(tt.input))}
		if got := a.confirm("Start?"); got != tt.want {
			t.Errorf("Input %q yes=%v: expected %v, got %v", tt.input, tt.yes, tt.want, got)
		}
	}
}

func TestRetentionDays(t *testing.T) {
	tests := []struct {
		value string
		want  int
	}{
		{"", defaultRetentionDays},
		{"14", 14},
		{" 3 ", 3},
		{"abc", defaultRetentionDays},
		{"0", defaultRetentionDays},
		{"-2", defaultRetentionDays},
	}
	for _, tt := range tests {
		t.Setenv("TRADER_LOG_RETENTION_DAYS", tt.value)
		if got := retentionDays(context.Background()); got != tt.want {
			t.Errorf("Expected %d for %q, got %d", tt.want, tt.value, got)
		}
	}
}
