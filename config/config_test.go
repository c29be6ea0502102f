package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"vote-program/models"
	"vote-program/storage"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Port != 8080 || cfg.Backend != BackendFile || cfg.Layout != models.LayoutBallots {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Space != storage.DefaultSpace || cfg.Difficulty != 1 || cfg.LogLevel != zerolog.InfoLevel {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestEnvironmentAndFlags(t *testing.T) {
	t.Setenv("VOTE_PORT", "9090")
	t.Setenv("VOTE_LAYOUT", "v1")
	t.Setenv("VOTE_LOG_JSON", "yes")
	t.Setenv("VOTE_SHUTDOWN_TIMEOUT", "3s")

	cfg, err := Load([]string{"-backend", "memory", "-space", "16"})
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Port != 9090 || cfg.Layout != models.LayoutCounter || !cfg.LogJSON {
		t.Fatalf("environment not applied: %+v", cfg)
	}
	if cfg.Backend != BackendMemory || cfg.Space != 16 || cfg.ShutdownTimeout != 3*time.Second {
		t.Fatalf("flags not applied: %+v", cfg)
	}

	cfg, err = Load([]string{"-port", "7000"})
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Port != 7000 {
		t.Fatalf("flag should override environment, got %d", cfg.Port)
	}
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	cases := map[string][]string{
		"difficulty":        {"-difficulty", "256"},
		"difficulty 4":      {"-difficulty", "4"},
		"difficulty 33":     {"-difficulty", "33", "-backend", "memory"},
		"negative diff":     {"-difficulty", "-1"},
		"layout":            {"-layout", "v3"},
		"backend":           {"-backend", "sqlite"},
		"postgres no dsn":   {"-backend", "postgres"},
		"space too small":   {"-space", "19"},
		"space too large":   {"-space", "20000000"},
		"zero workers":      {"-workers", "0"},
		"zero block size":   {"-block-size", "0"},
		"bad log level":     {"-log-level", "loud"},
		"unknown flag":      {"-nope"},
		"port out of range": {"-port", "70000"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(args); err == nil {
				t.Fatalf("expected error for %v", args)
			}
		})
	}
}

func TestValidateRejectsUnreachableDifficulty(t *testing.T) {
	cfg, err := Load([]string{"-difficulty", "3"})
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	cfg.Difficulty = 33
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected difficulty 33 to be rejected")
	}
}
