package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q, want :8080", cfg.BindAddr)
	}
	if cfg.CompressThreshold != 10 || cfg.CompressLookback != 15 {
		t.Fatalf("compression defaults = %d/%d, want 10/15", cfg.CompressThreshold, cfg.CompressLookback)
	}
	if cfg.SessionInactivityTimeout != 10*time.Minute {
		t.Fatalf("SessionInactivityTimeout = %v, want 10m", cfg.SessionInactivityTimeout)
	}
	if cfg.TextGenModel != "gpt-4o-mini" || cfg.TextGenMode != "auto" {
		t.Fatalf("textgen defaults = %q/%q", cfg.TextGenModel, cfg.TextGenMode)
	}
	if cfg.TranscriptMaxChars != 6000 {
		t.Fatalf("TranscriptMaxChars = %d, want 6000", cfg.TranscriptMaxChars)
	}
	if cfg.DedupeTags {
		t.Fatalf("DedupeTags default = true, want false")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_BIND_ADDR", ":9191")
	t.Setenv("MEMORY_COMPRESS_THRESHOLD", "4")
	t.Setenv("MEMORY_COMPRESS_LOOKBACK", "6")
	t.Setenv("TEXTGEN_TIMEOUT", "5s")
	t.Setenv("TAGGER_DEDUPE_TAGS", "yes")
	t.Setenv("REDIS_DB", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":9191" {
		t.Fatalf("BindAddr = %q", cfg.BindAddr)
	}
	if cfg.CompressThreshold != 4 || cfg.CompressLookback != 6 {
		t.Fatalf("compression settings = %d/%d", cfg.CompressThreshold, cfg.CompressLookback)
	}
	if cfg.TextGenTimeout != 5*time.Second {
		t.Fatalf("TextGenTimeout = %v", cfg.TextGenTimeout)
	}
	if !cfg.DedupeTags {
		t.Fatalf("DedupeTags = false, want true")
	}
	if cfg.RedisDB != 3 {
		t.Fatalf("RedisDB = %d, want 3", cfg.RedisDB)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		key string
		val string
	}{
		{"APP_SESSION_INACTIVITY_TIMEOUT", "1s"},
		{"MEMORY_COMPRESS_THRESHOLD", "0"},
		{"MEMORY_COMPRESS_LOOKBACK", "-1"},
		{"TAGGER_TRANSCRIPT_MAX_CHARS", "0"},
		{"TEXTGEN_MODE", "cli"},
		{"TEXTGEN_TIMEOUT", "soon"},
		{"TAGGER_DEDUPE_TAGS", "maybe"},
		{"REDIS_DB", "three"},
	}
	for _, tc := range cases {
		t.Run(tc.key, func(t *testing.T) {
			t.Setenv(tc.key, tc.val)
			if _, err := Load(); err == nil {
				t.Fatalf("Load() with %s=%s expected an error", tc.key, tc.val)
			}
		})
	}
}
