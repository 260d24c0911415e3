package persist

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoggerStartupShutdown(t *testing.T) {
	dir := t.TempDir()
	filename := filepath.Join(dir, "test.log")

	l, err := NewLogger(filename)
	if err != nil {
		t.Fatal(err)
	}
	l.Println("hello")
	l.Debugln("debug line")
	l.Severe("something is wrong")
	l.Critical("invariant violated")
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	contents, err := os.ReadFile(filename)
	if err != nil {
		t.Fatal(err)
	}
	got := string(contents)
	for _, want := range []string{"STARTUP:", "hello", "debug line", "SEVERE:", "CRITICAL:", "SHUTDOWN:"} {
		if !strings.Contains(got, want) {
			t.Errorf("log file missing expected substring %q", want)
		}
	}
}

func TestLoggerAppends(t *testing.T) {
	dir := t.TempDir()
	filename := filepath.Join(dir, "test.log")

	l1, err := NewLogger(filename)
	if err != nil {
		t.Fatal(err)
	}
	l1.Println("first session")
	l1.Close()

	l2, err := NewLogger(filename)
	if err != nil {
		t.Fatal(err)
	}
	l2.Println("second session")
	l2.Close()

	contents, err := os.ReadFile(filename)
	if err != nil {
		t.Fatal(err)
	}
	got := string(contents)
	if !strings.Contains(got, "first session") || !strings.Contains(got, "second session") {
		t.Fatal("expected both sessions' lines to be present in the appended log")
	}
}
