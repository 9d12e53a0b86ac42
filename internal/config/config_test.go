package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %q, want 8080", cfg.ServerPort)
	}
	if cfg.JWTExpiry != 24*time.Hour {
		t.Errorf("JWTExpiry = %v, want 24h", cfg.JWTExpiry)
	}
	if cfg.ProctorGrace != 10*time.Second {
		t.Errorf("ProctorGrace = %v, want 10s", cfg.ProctorGrace)
	}
	if cfg.ProctorMaxExits != 3 {
		t.Errorf("ProctorMaxExits = %d, want 3", cfg.ProctorMaxExits)
	}
	if cfg.AllowedOrigins != nil {
		t.Errorf("AllowedOrigins = %v, want nil (allow all)", cfg.AllowedOrigins)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("PROCTOR_GRACE_SECONDS", "30")
	t.Setenv("PROCTOR_MAX_EXITS", "not-a-number")

	cfg := Load()

	if cfg.ServerPort != "9000" {
		t.Errorf("ServerPort = %q, want 9000", cfg.ServerPort)
	}
	if cfg.ProctorGrace != 30*time.Second {
		t.Errorf("ProctorGrace = %v, want 30s", cfg.ProctorGrace)
	}
	// Unparseable ints fall back to the default.
	if cfg.ProctorMaxExits != 3 {
		t.Errorf("ProctorMaxExits = %d, want default 3", cfg.ProctorMaxExits)
	}
}

func TestParseOrigins(t *testing.T) {
	if got := parseOrigins(""); got != nil {
		t.Errorf("parseOrigins(\"\") = %v, want nil", got)
	}

	got := parseOrigins(" https://exam.example.com , https://admin.example.com ,, ")
	want := []string{"https://exam.example.com", "https://admin.example.com"}
	if len(got) != len(want) {
		t.Fatalf("origins = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("origins[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
