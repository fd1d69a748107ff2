package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		name    string
		level   log.Level
		logFunc func(*log.Logger)
		wantLog bool
	}{
		{
			name:    "stage trace hidden at info",
			level:   LogInfo,
			logFunc: func(l *log.Logger) { l.Debug("stage finished", "stage", "resolve") },
			wantLog: false,
		},
		{
			name:    "stage trace shown with --verbose",
			level:   LogDebug,
			logFunc: func(l *log.Logger) { l.Debug("stage finished", "stage", "resolve") },
			wantLog: true,
		},
		{
			name:    "cache warning shown at info",
			level:   LogInfo,
			logFunc: func(l *log.Logger) { l.Warn("cache disabled", "dir", "/tmp/wapm") },
			wantLog: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.logFunc(newLogger(&buf, tt.level))

			if gotLog := buf.Len() > 0; gotLog != tt.wantLog {
				t.Errorf("got log output = %v, want %v (%q)", gotLog, tt.wantLog, buf.String())
			}
		})
	}
}

func TestProgressDoneReportsElapsed(t *testing.T) {
	var buf bytes.Buffer
	prog := newProgress(newLogger(&buf, LogDebug))
	prog.done("Update finished")

	out := buf.String()
	if !strings.Contains(out, "Update finished (") || !strings.Contains(out, "s)") {
		t.Errorf("progress output = %q, want message with elapsed time", out)
	}
}

func TestLoggerFromContext(t *testing.T) {
	var buf bytes.Buffer
	cmdLogger := newLogger(&buf, LogInfo)

	tests := []struct {
		name string
		ctx  context.Context
		want *log.Logger
	}{
		{"command context", withLogger(context.Background(), cmdLogger), cmdLogger},
		{"no logger", context.Background(), log.Default()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := loggerFromContext(tt.ctx); got != tt.want {
				t.Errorf("loggerFromContext() = %p, want %p", got, tt.want)
			}
		})
	}
}

func TestRootCommandAttachesLogger(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf, LogInfo)
	root := c.RootCommand()

	if err := root.PersistentPreRunE(root, nil); err != nil {
		t.Fatalf("PersistentPreRunE: %v", err)
	}
	got := loggerFromContext(root.Context())
	if got != c.Logger {
		t.Fatal("command context does not carry the CLI logger")
	}
	got.Info("resolved packages", "count", 2)
	if !strings.Contains(buf.String(), "resolved packages") {
		t.Errorf("log output = %q", buf.String())
	}
}
