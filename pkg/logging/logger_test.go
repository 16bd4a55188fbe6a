package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
		{Level(-1), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := tt.level.String()
			if got != tt.want {
				t.Errorf("Level.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name string
		want Level
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"error", LevelError},
		{"verbose", LevelInfo}, // Unknown defaults to Info
		{"", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseLevel(tt.name)
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestLevel_toSlogLevel(t *testing.T) {
	tests := []struct {
		level Level
		want  slog.Level
	}{
		{LevelDebug, slog.LevelDebug},
		{LevelInfo, slog.LevelInfo},
		{LevelWarn, slog.LevelWarn},
		{LevelError, slog.LevelError},
		{Level(99), slog.LevelInfo}, // Unknown defaults to Info
	}

	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			got := tt.level.toSlogLevel()
			if got != tt.want {
				t.Errorf("Level.toSlogLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNew_DefaultConfig(t *testing.T) {
	logger := New(Config{})
	if logger == nil {
		t.Fatal("New() returned nil")
	}
	if logger.slog == nil {
		t.Error("logger.slog is nil")
	}
	defer logger.Close()
}

func TestNew_WithLogDir(t *testing.T) {
	tmpDir := t.TempDir()
	logger := New(Config{
		LogDir:  tmpDir,
		Service: "test",
		Quiet:   true,
	})
	defer logger.Close()

	if logger.file == nil {
		t.Error("logger.file is nil when LogDir specified")
	}

	files, err := os.ReadDir(tmpDir)
	if err != nil {
		t.Fatalf("Failed to read dir: %v", err)
	}
	if len(files) == 0 {
		t.Error("No log file created in LogDir")
	}
}

func TestNew_WithLogDir_NoService(t *testing.T) {
	tmpDir := t.TempDir()
	logger := New(Config{
		LogDir: tmpDir,
		Quiet:  true,
	})
	defer logger.Close()

	// Should use "archaeologist" as default service name
	files, err := os.ReadDir(tmpDir)
	if err != nil {
		t.Fatalf("Failed to read dir: %v", err)
	}
	found := false
	for _, f := range files {
		if strings.HasPrefix(f.Name(), "archaeologist_") {
			found = true
			break
		}
	}
	if !found {
		t.Error("Expected log file with 'archaeologist_' prefix")
	}
}

func TestNew_WithLogDir_InvalidPath(t *testing.T) {
	logger := New(Config{
		LogDir: string([]byte{0}) + "/cannot/create",
		Quiet:  true,
	})
	defer logger.Close()

	// File logging silently disabled; logger still usable
	if logger.file != nil {
		t.Error("Expected nil file for invalid LogDir")
	}
	logger.Info("still works")
}

func TestLogger_FileContent(t *testing.T) {
	tmpDir := t.TempDir()
	logger := New(Config{
		Level:   LevelInfo,
		LogDir:  tmpDir,
		Service: "file-test",
		Quiet:   true,
	})

	logger.Info("test message", "key", "value")
	logger.Close()

	files, _ := os.ReadDir(tmpDir)
	if len(files) == 0 {
		t.Fatal("No log file created")
	}

	content, err := os.ReadFile(filepath.Join(tmpDir, files[0].Name()))
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	// Should be JSON format
	if !strings.Contains(string(content), "test message") {
		t.Error("Log file should contain 'test message'")
	}
	if !strings.Contains(string(content), "\"key\":\"value\"") {
		t.Error("Log file should contain key-value pair in JSON format")
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	tmpDir := t.TempDir()
	logger := New(Config{
		Level:   LevelWarn,
		LogDir:  tmpDir,
		Service: "filter-test",
		Quiet:   true,
	})

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Close()

	files, _ := os.ReadDir(tmpDir)
	if len(files) == 0 {
		t.Fatal("No log file created")
	}
	content, err := os.ReadFile(filepath.Join(tmpDir, files[0].Name()))
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	if strings.Contains(string(content), "info message") {
		t.Error("Info message should have been filtered out")
	}
	if !strings.Contains(string(content), "warn message") {
		t.Error("Warn message should have been logged")
	}
}

func TestLogger_With(t *testing.T) {
	tmpDir := t.TempDir()
	logger := New(Config{
		LogDir:  tmpDir,
		Service: "with-test",
		Quiet:   true,
	})

	child := logger.With("request_id", "abc-123")
	child.Info("processing")
	logger.Close()

	files, _ := os.ReadDir(tmpDir)
	if len(files) == 0 {
		t.Fatal("No log file created")
	}
	content, _ := os.ReadFile(filepath.Join(tmpDir, files[0].Name()))

	if !strings.Contains(string(content), "abc-123") {
		t.Error("Child logger should include parent-scoped attribute")
	}
}

func TestLogger_Slog(t *testing.T) {
	logger := New(Config{Quiet: true})
	defer logger.Close()

	if logger.Slog() == nil {
		t.Error("Slog() returned nil")
	}
}

func TestLogger_Close_NoResources(t *testing.T) {
	logger := New(Config{Quiet: true})
	if err := logger.Close(); err != nil {
		t.Errorf("Close() error = %v, want nil", err)
	}
	// Second close is a no-op
	if err := logger.Close(); err != nil {
		t.Errorf("Second Close() error = %v, want nil", err)
	}
}

func TestLogger_ConcurrentUse(t *testing.T) {
	tmpDir := t.TempDir()
	logger := New(Config{
		Level:   LevelInfo,
		LogDir:  tmpDir,
		Service: "concurrent-test",
		Quiet:   true,
	})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			logger.Info("concurrent log", "n", n)
		}(i)
	}
	wg.Wait()
	logger.Close()

	files, _ := os.ReadDir(tmpDir)
	if len(files) == 0 {
		t.Fatal("No log file created")
	}
	content, _ := os.ReadFile(filepath.Join(tmpDir, files[0].Name()))
	got := strings.Count(string(content), "concurrent log")
	if got != 100 {
		t.Errorf("Expected 100 log lines, got %d", got)
	}
}

func TestMultiHandler_Enabled(t *testing.T) {
	var buf bytes.Buffer
	h := &multiHandler{handlers: []slog.Handler{
		slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}),
		slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	}}

	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Enabled should be true when any handler accepts the level")
	}
}

func TestMultiHandler_Handle_LevelFiltering(t *testing.T) {
	var warnBuf, debugBuf bytes.Buffer
	h := &multiHandler{handlers: []slog.Handler{
		slog.NewTextHandler(&warnBuf, &slog.HandlerOptions{Level: slog.LevelWarn}),
		slog.NewTextHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	}}

	logger := slog.New(h)
	logger.Info("info message")

	if warnBuf.Len() != 0 {
		t.Error("Warn-level handler should not have received an info record")
	}
	if !strings.Contains(debugBuf.String(), "info message") {
		t.Error("Debug-level handler should have received the info record")
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("No home directory available")
	}

	tests := []struct {
		path string
		want string
	}{
		{"~/.archaeologist/logs", filepath.Join(home, ".archaeologist/logs")},
		{"/var/log", "/var/log"},
		{"relative/path", "relative/path"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := expandPath(tt.path)
			if got != tt.want {
				t.Errorf("expandPath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}
