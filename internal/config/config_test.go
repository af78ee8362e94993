package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return path
}

const validSecret = "0123456789abcdef0123456789abcdef"

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "auth:\n  jwt_secret: "+validSecret+"\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" || cfg.Server.Port != 8000 {
		t.Fatalf("server defaults = %s:%d, want 0.0.0.0:8000", cfg.Server.Host, cfg.Server.Port)
	}
	if cfg.Addr() != "0.0.0.0:8000" {
		t.Fatalf("Addr() = %q, want %q", cfg.Addr(), "0.0.0.0:8000")
	}
	if cfg.Database.Path != "./data/huddle.db" {
		t.Fatalf("database.path = %q, want default", cfg.Database.Path)
	}
	if cfg.Auth.AccessTokenTTL != 24*time.Hour {
		t.Fatalf("access_token_ttl = %v, want 24h", cfg.Auth.AccessTokenTTL)
	}
	if cfg.Hub.RelayRawFrames == nil || !*cfg.Hub.RelayRawFrames {
		t.Fatal("relay_raw_frames should default to true")
	}
	if cfg.TURN.Port != 3478 || cfg.TURN.TTL != 24*time.Hour {
		t.Fatalf("turn defaults = port %d ttl %v, want 3478 and 24h", cfg.TURN.Port, cfg.TURN.TTL)
	}
}

func TestLoadParsesFullConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  name: Test Server
  host: 127.0.0.1
  port: 9000
database:
  path: /tmp/test.db
  message_retention: 720h
auth:
  jwt_secret: `+validSecret+`
  access_token_ttl: 1h
hub:
  relay_raw_frames: false
turn:
  host: turn.example.com
  port: 5349
  secret: coturn-shared-secret
  ttl: 2h
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Name != "Test Server" || cfg.Addr() != "127.0.0.1:9000" {
		t.Fatalf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Database.MessageRetention != 720*time.Hour {
		t.Fatalf("message_retention = %v, want 720h", cfg.Database.MessageRetention)
	}
	if cfg.Auth.AccessTokenTTL != time.Hour {
		t.Fatalf("access_token_ttl = %v, want 1h", cfg.Auth.AccessTokenTTL)
	}
	if cfg.Hub.RelayRawFrames == nil || *cfg.Hub.RelayRawFrames {
		t.Fatal("relay_raw_frames should stay false when set explicitly")
	}
	if cfg.TURN.Host != "turn.example.com" || cfg.TURN.Port != 5349 || cfg.TURN.TTL != 2*time.Hour {
		t.Fatalf("unexpected turn config: %+v", cfg.TURN)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HUDDLE_JWT_SECRET", validSecret)
	t.Setenv("HUDDLE_TURN_SECRET", "env-turn-secret")

	path := writeConfig(t, `
auth:
  jwt_secret: file-secret-that-is-long-enough!
turn:
  host: turn.example.com
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Auth.JWTSecret != validSecret {
		t.Fatalf("jwt_secret = %q, want env override", cfg.Auth.JWTSecret)
	}
	if cfg.TURN.Secret != "env-turn-secret" {
		t.Fatalf("turn.secret = %q, want env override", cfg.TURN.Secret)
	}
}

func TestLoadValidation(t *testing.T) {
	testCases := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing jwt secret",
			yaml:    "server:\n  port: 9000\n",
			wantErr: "auth.jwt_secret is required",
		},
		{
			name:    "short jwt secret",
			yaml:    "auth:\n  jwt_secret: too-short\n",
			wantErr: "auth.jwt_secret must be at least 32 characters",
		},
		{
			name:    "turn host without secret",
			yaml:    "auth:\n  jwt_secret: " + validSecret + "\nturn:\n  host: turn.example.com\n",
			wantErr: "turn.secret is required when turn.host is set",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.yaml)
			_, err := Load(path)
			if err == nil {
				t.Fatal("Load() succeeded, want validation error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("Load() error = %v, want it to mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Load() succeeded on a missing file")
	}
}
