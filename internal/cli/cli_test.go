package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"melody-quiz-service/internal/domain"
)

func TestRenderQuestions(t *testing.T) {
	out := renderQuestions([]domain.Question{
		{ID: "q1", Artist: "Queen", Title: "Bohemian Rhapsody", DurationSeconds: 354.2, Answers: []string{"bo rhap"}},
		{ID: "q2", Artist: "ABBA", Title: "Waterloo"},
	})
	for _, want := range []string{"ID", "Queen", "354.2", "bo rhap", "Waterloo", "-"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in table:\n%s", want, out)
		}
	}
}

func TestRenderTableEmptyHeaders(t *testing.T) {
	if got := renderTable(nil, [][]string{{"x"}}, nil); got != "" {
		t.Fatalf("expected empty output, got %q", got)
	}
}

func TestCatalogListFromFile(t *testing.T) {
	dir := t.TempDir()
	catalog := filepath.Join(dir, "catalog.yaml")
	if err := os.WriteFile(catalog, []byte("questions:\n  - id: q1\n    artist: Queen\n    title: Bohemian Rhapsody\n"), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("catalog:\n  path: "+catalog+"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", cfgPath, "catalog", "list"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("catalog list: %v", err)
	}
	if !strings.Contains(out.String(), "Bohemian Rhapsody") {
		t.Fatalf("expected question in output:\n%s", out.String())
	}
}

func TestLoadConfigFallsBackToDefaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Server.Port != "8080" || cfg.Media.FFmpeg != "ffmpeg" {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}
