package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSecretCommand(t *testing.T) {
	dir := isolate(t)

	out, _ := runApp(t, "secret")
	first := strings.TrimSpace(out)
	if len(first) != 64 {
		t.Fatalf("unexpected secret %q", first)
	}
	stored, err := os.ReadFile(filepath.Join(dir, "daemon.secret"))
	if err != nil || string(stored) != first {
		t.Fatalf("secret not stored: %q, %v", stored, err)
	}

	out, _ = runApp(t, "secret")
	if strings.TrimSpace(out) != first {
		t.Fatalf("expected the stored secret again, got %q", out)
	}

	out, _ = runApp(t, "secret", "--rotate")
	if rotated := strings.TrimSpace(out); rotated == first || len(rotated) != 64 {
		t.Fatalf("expected a new secret, got %q", rotated)
	}
}

func TestSettingsSecretResolution(t *testing.T) {
	isolate(t)
	s := defaultSettings()
	if created, err := s.ensureSecret(); err != nil || created || s.Secret != "" {
		t.Fatalf("a socket daemon needs no secret: %v %v %q", created, err, s.Secret)
	}

	s.Listen = "127.0.0.1:0"
	created, err := s.ensureSecret()
	if err != nil || !created || s.Secret == "" {
		t.Fatalf("ensureSecret = %v, %v, %q", created, err, s.Secret)
	}

	client := defaultSettings()
	client.DaemonURI = "unix:///tmp/warpops.sock"
	client.lookupSecret()
	if client.Secret != "" {
		t.Fatal("a socket URI must not pick up the secret")
	}
	client.DaemonURI = "tcp://127.0.0.1:3849"
	client.lookupSecret()
	if client.Secret != s.Secret {
		t.Fatalf("expected the stored secret, got %q", client.Secret)
	}

	client.Secret = "explicit"
	client.lookupSecret()
	if client.Secret != "explicit" {
		t.Fatal("a configured secret must win")
	}
}
