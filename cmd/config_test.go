package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/urfave/cli"
	"github.com/warpdl/warpops/common"
	"github.com/warpdl/warpops/pkg/warpops"
)

// settingsFor loads the settings the way a command invoked with args would.
func settingsFor(t *testing.T, args ...string) (*settings, error) {
	t.Helper()
	var (
		got *settings
		err error
	)
	app := cli.NewApp()
	app.Flags = globalFlags
	app.Commands = []cli.Command{{
		Name: "probe",
		Action: func(ctx *cli.Context) error {
			got, err = loadSettings(ctx)
			return nil
		},
	}}
	if rerr := app.Run(append(append([]string{"warpops"}, args...), "probe")); rerr != nil {
		t.Fatalf("app.Run: %v", rerr)
	}
	return got, err
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, configFileName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadSettings_Defaults(t *testing.T) {
	dir := isolate(t)
	s, err := settingsFor(t)
	if err != nil {
		t.Fatalf("loadSettings: %v", err)
	}
	def := warpops.DefaultConfig()
	if s.Engine.Limits[warpops.CategoryIO] != def.Limits[warpops.CategoryIO] {
		t.Fatalf("io limit = %d", s.Engine.Limits[warpops.CategoryIO])
	}
	if s.Engine.Retry.MaxAttempts != def.Retry.MaxAttempts {
		t.Fatalf("max attempts = %d", s.Engine.Retry.MaxAttempts)
	}
	if s.TrashDir != filepath.Join(dir, "trash") {
		t.Fatalf("trash dir = %s", s.TrashDir)
	}
	if s.Port != common.DEF_TCP_PORT || s.Debug {
		t.Fatalf("unexpected settings %+v", s)
	}
}

func TestLoadSettings_File(t *testing.T) {
	dir := isolate(t)
	writeConfig(t, dir, `
limits:
  io: 8
  cpu: 1
retry:
  max_attempts: 5
  base_delay: 250ms
emit_interval: 1s
abort_on_failure: true
trash_dir: /var/tmp/bin
daemon:
  listen: 127.0.0.1:4000
  secret: s3cret
  origins: [localhost]
`)
	s, err := settingsFor(t)
	if err != nil {
		t.Fatalf("loadSettings: %v", err)
	}
	tests := []struct {
		name      string
		got, want any
	}{
		{"io", s.Engine.Limits[warpops.CategoryIO], 8},
		{"cpu", s.Engine.Limits[warpops.CategoryCPU], 1},
		{"light keeps default", s.Engine.Limits[warpops.CategoryLight], warpops.DEF_LIGHT_LIMIT},
		{"attempts", s.Engine.Retry.MaxAttempts, 5},
		{"base delay", s.Engine.Retry.BaseDelay, 250 * time.Millisecond},
		{"emit", s.Engine.EmitInterval, time.Second},
		{"abort", s.Engine.AbortOnFailure, true},
		{"trash", s.TrashDir, "/var/tmp/bin"},
		{"listen", s.Listen, "127.0.0.1:4000"},
		{"secret", s.Secret, "s3cret"},
		{"origins", len(s.Origins), 1},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestLoadSettings_Precedence(t *testing.T) {
	dir := isolate(t)
	writeConfig(t, dir, "limits:\n  io: 8\n  cpu: 3\nretry:\n  max_attempts: 5\n")
	t.Setenv(common.IOLimitEnv, "6")
	t.Setenv(common.MaxAttemptsEnv, "7")
	t.Setenv(common.DebugEnv, "true")

	s, err := settingsFor(t, "--io-limit", "2")
	if err != nil {
		t.Fatalf("loadSettings: %v", err)
	}
	if got := s.Engine.Limits[warpops.CategoryIO]; got != 2 {
		t.Errorf("flag should win: io = %d", got)
	}
	if got := s.Engine.Limits[warpops.CategoryCPU]; got != 3 {
		t.Errorf("file value lost: cpu = %d", got)
	}
	if got := s.Engine.Retry.MaxAttempts; got != 7 {
		t.Errorf("env should beat the file: attempts = %d", got)
	}
	if !s.Debug {
		t.Error("debug from env not applied")
	}
}

func TestLoadSettings_ExplicitConfig(t *testing.T) {
	isolate(t)
	other := t.TempDir()
	path := writeConfig(t, other, "limits:\n  cpu: 9\n")

	s, err := settingsFor(t, "--config", path)
	if err != nil {
		t.Fatalf("loadSettings: %v", err)
	}
	if s.Engine.Limits[warpops.CategoryCPU] != 9 {
		t.Fatalf("cpu = %d", s.Engine.Limits[warpops.CategoryCPU])
	}

	t.Setenv(common.ConfigEnv, path)
	if s, err = settingsFor(t); err != nil || s.Engine.Limits[warpops.CategoryCPU] != 9 {
		t.Fatalf("config from env: %+v, %v", s, err)
	}
}

func TestLoadSettings_Errors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, dir string) []string
	}{
		{"missing explicit file", func(t *testing.T, dir string) []string {
			return []string{"--config", filepath.Join(dir, "nope.yaml")}
		}},
		{"malformed yaml", func(t *testing.T, dir string) []string {
			writeConfig(t, dir, "limits: [1, 2")
			return nil
		}},
		{"bad duration", func(t *testing.T, dir string) []string {
			writeConfig(t, dir, "emit_interval: soon\n")
			return nil
		}},
		{"bad env", func(t *testing.T, dir string) []string {
			t.Setenv(common.CPULimitEnv, "many")
			return nil
		}},
		{"invalid config", func(t *testing.T, dir string) []string {
			return []string{"--max-attempts", "0"}
		}},
		{"negative limit", func(t *testing.T, dir string) []string {
			t.Setenv(common.IOLimitEnv, "-1")
			return nil
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := isolate(t)
			args := tt.setup(t, dir)
			if _, err := settingsFor(t, args...); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestServerConfig(t *testing.T) {
	isolate(t)
	old := currentBuildArgs
	currentBuildArgs = BuildArgs{Version: "1.2.3", Commit: "abc", BuildType: "release"}
	defer func() { currentBuildArgs = old }()

	s := defaultSettings()
	s.Listen, s.Secret, s.Origins = "0.0.0.0:1", "x", []string{"example.com"}
	cfg := s.serverConfig()
	if cfg.Listen != s.Listen || cfg.Port != common.DEF_TCP_PORT {
		t.Fatalf("unexpected server config %+v", cfg)
	}
	if cfg.RPC.Version != "1.2.3" || cfg.RPC.Secret != "x" || cfg.RPC.Origins[0] != "example.com" {
		t.Fatalf("unexpected rpc config %+v", cfg.RPC)
	}
}
