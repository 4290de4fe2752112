package shared

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestParseLogLevel(t *testing.T) {
	tc := []struct {
		name  string
		level string
		want  log.Level
	}{
		{name: "empty defaults to info", level: "", want: log.InfoLevel},
		{name: "debug", level: "debug", want: log.DebugLevel},
		{name: "mixed case", level: "WaRn", want: log.WarnLevel},
		{name: "unknown defaults to info", level: "verbose", want: log.InfoLevel},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLogLevel(tt.level); got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.level, got, tt.want)
			}
		})
	}
}

func TestLoggers(t *testing.T) {
	t.Run("WithLogger adds fields", func(t *testing.T) {
		var buf bytes.Buffer
		logger := WithLogger(NewLogger(&buf), "component", "tracker")
		logger.Info("loaded")

		if out := buf.String(); !strings.Contains(out, "component=tracker") {
			t.Errorf("expected component field in output, got %q", out)
		}
	})

	t.Run("NewFileLogger creates directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "logs", "watchx.log")
		logger, err := NewFileLogger(path)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if logger == nil {
			t.Fatal("expected logger")
		}
	})
}

func TestGenerateID(t *testing.T) {
	a, b := GenerateID(), GenerateID()
	if a == b {
		t.Error("expected unique ids")
	}
	if !IsValidID(a) {
		t.Errorf("expected %q to be a valid id", a)
	}
	if IsValidID("not-a-uuid") {
		t.Error("expected invalid id to be rejected")
	}
}

func TestBrowserCommand(t *testing.T) {
	original := getRuntime
	t.Cleanup(func() { getRuntime = original })

	t.Run("rejects non-http schemes", func(t *testing.T) {
		getRuntime = func() string { return "linux" }
		if _, err := browserCommand("file:///etc/passwd"); err == nil {
			t.Error("expected error for file scheme")
		}
	})

	t.Run("linux uses xdg-open", func(t *testing.T) {
		getRuntime = func() string { return "linux" }
		cmd, err := browserCommand("https://www.themoviedb.org/movie/603")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.HasSuffix(cmd.Path, "xdg-open") && cmd.Args[0] != "xdg-open" {
			t.Errorf("expected xdg-open, got %v", cmd.Args)
		}
	})

	t.Run("unsupported platform", func(t *testing.T) {
		getRuntime = func() string { return "plan9" }
		if _, err := browserCommand("https://myanimelist.net/anime/1"); err == nil {
			t.Error("expected error for unsupported platform")
		}
	})
}
