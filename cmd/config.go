package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli"
	"github.com/warpdl/warpops/common"
	"github.com/warpdl/warpops/internal/server"
	"github.com/warpdl/warpops/pkg/warpops"
	"gopkg.in/yaml.v3"
)

const configFileName = "config.yaml"

// configDir holds the config file, the pid file, the trash index and the
// default trash directory.
var configDir = defaultConfigDir()

func defaultConfigDir() string {
	dir, err := common.ConfigDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "warpops")
	}
	return dir
}

// fileConfig is the YAML configuration file. Pointers tell unset keys from
// zero values.
type fileConfig struct {
	Limits struct {
		IO    *int `yaml:"io"`
		CPU   *int `yaml:"cpu"`
		Light *int `yaml:"light"`
	} `yaml:"limits"`
	Retry struct {
		MaxAttempts *int           `yaml:"max_attempts"`
		BaseDelay   *time.Duration `yaml:"base_delay"`
		MaxDelay    *time.Duration `yaml:"max_delay"`
		Jitter      *float64       `yaml:"jitter"`
		Backoff     *float64       `yaml:"backoff"`
	} `yaml:"retry"`
	EmitInterval   *time.Duration `yaml:"emit_interval"`
	AbortOnFailure *bool          `yaml:"abort_on_failure"`
	Retention      *time.Duration `yaml:"retention"`
	ChunkSize      *int64         `yaml:"chunk_size"`
	TrashDir       string         `yaml:"trash_dir"`
	Debug          bool           `yaml:"debug"`
	Daemon         struct {
		URI     string   `yaml:"uri"`
		Listen  string   `yaml:"listen"`
		Port    int      `yaml:"port"`
		Secret  string   `yaml:"secret"`
		Origins []string `yaml:"origins"`
	} `yaml:"daemon"`
}

// settings is the merged configuration of one invocation.
type settings struct {
	Engine    warpops.Config
	TrashDir  string
	Debug     bool
	DaemonURI string
	Listen    string
	Port      int
	Secret    string
	Origins   []string
}

func defaultSettings() *settings {
	return &settings{
		Engine:   warpops.DefaultConfig(),
		TrashDir: filepath.Join(configDir, "trash"),
		Port:     common.DEF_TCP_PORT,
	}
}

// trashIndex is the path of the trash bin's sqlite index.
func (s *settings) trashIndex() string {
	return filepath.Join(s.TrashDir, "index.db")
}

func (s *settings) serverConfig() server.Config {
	return server.Config{
		Listen: s.Listen,
		Port:   s.Port,
		RPC: server.RPCConfig{
			Secret:    s.Secret,
			Version:   currentBuildArgs.Version,
			Commit:    currentBuildArgs.Commit,
			BuildType: currentBuildArgs.BuildType,
			Origins:   s.Origins,
		},
	}
}

var globalFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "config",
		Usage: "path of the YAML configuration file",
	},
	cli.BoolFlag{
		Name:  "debug",
		Usage: "enable debug logging",
	},
	cli.IntFlag{
		Name:  "io-limit",
		Usage: "number of concurrent IO-bound tasks, 0 for unbounded",
	},
	cli.IntFlag{
		Name:  "cpu-limit",
		Usage: "number of concurrent CPU-bound tasks, 0 for unbounded",
	},
	cli.IntFlag{
		Name:  "max-attempts",
		Usage: "attempts per task including the first",
	},
	cli.StringFlag{
		Name:  "trash-dir",
		Usage: "directory trashed files are moved into",
	},
}

// loadSettings merges, lowest first: defaults, the config file, WARPOPS_*
// environment variables and global flags.
func loadSettings(ctx *cli.Context) (*settings, error) {
	s := defaultSettings()
	path, explicit := ctx.GlobalString("config"), true
	if path == "" {
		path = os.Getenv(common.ConfigEnv)
	}
	if path == "" {
		path, explicit = filepath.Join(configDir, configFileName), false
	}
	if err := s.applyFile(path, explicit); err != nil {
		return nil, err
	}
	if err := s.applyEnv(); err != nil {
		return nil, err
	}
	s.applyFlags(ctx)
	if err := s.Engine.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return s, nil
}

func (s *settings) applyFile(path string, explicit bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("error reading config: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("error parsing config %s: %w", path, err)
	}
	setIf(&fc.Limits.IO, func(v int) { s.Engine.Limits[warpops.CategoryIO] = v })
	setIf(&fc.Limits.CPU, func(v int) { s.Engine.Limits[warpops.CategoryCPU] = v })
	setIf(&fc.Limits.Light, func(v int) { s.Engine.Limits[warpops.CategoryLight] = v })
	setIf(&fc.Retry.MaxAttempts, func(v int) { s.Engine.Retry.MaxAttempts = v })
	setIf(&fc.Retry.BaseDelay, func(v time.Duration) { s.Engine.Retry.BaseDelay = v })
	setIf(&fc.Retry.MaxDelay, func(v time.Duration) { s.Engine.Retry.MaxDelay = v })
	setIf(&fc.Retry.Jitter, func(v float64) { s.Engine.Retry.JitterFactor = v })
	setIf(&fc.Retry.Backoff, func(v float64) { s.Engine.Retry.BackoffFactor = v })
	setIf(&fc.EmitInterval, func(v time.Duration) { s.Engine.EmitInterval = v })
	setIf(&fc.AbortOnFailure, func(v bool) { s.Engine.AbortOnFailure = v })
	setIf(&fc.Retention, func(v time.Duration) { s.Engine.Retention = v })
	setIf(&fc.ChunkSize, func(v int64) { s.Engine.ChunkSize = v })
	if fc.TrashDir != "" {
		s.TrashDir = fc.TrashDir
	}
	s.Debug = s.Debug || fc.Debug
	if fc.Daemon.URI != "" {
		s.DaemonURI = fc.Daemon.URI
	}
	if fc.Daemon.Listen != "" {
		s.Listen = fc.Daemon.Listen
	}
	if fc.Daemon.Port != 0 {
		s.Port = fc.Daemon.Port
	}
	if fc.Daemon.Secret != "" {
		s.Secret = fc.Daemon.Secret
	}
	s.Origins = append(s.Origins, fc.Daemon.Origins...)
	return nil
}

func setIf[T any](p **T, set func(T)) {
	if *p != nil {
		set(**p)
	}
}

func (s *settings) applyEnv() error {
	ints := []struct {
		name string
		set  func(int)
	}{
		{common.IOLimitEnv, func(v int) { s.Engine.Limits[warpops.CategoryIO] = v }},
		{common.CPULimitEnv, func(v int) { s.Engine.Limits[warpops.CategoryCPU] = v }},
		{common.LightLimitEnv, func(v int) { s.Engine.Limits[warpops.CategoryLight] = v }},
		{common.MaxAttemptsEnv, func(v int) { s.Engine.Retry.MaxAttempts = v }},
	}
	for _, e := range ints {
		v, ok, err := common.EnvInt(e.name)
		if err != nil {
			return err
		}
		if ok {
			e.set(v)
		}
	}
	durations := []struct {
		name string
		set  func(time.Duration)
	}{
		{common.RetryBaseEnv, func(v time.Duration) { s.Engine.Retry.BaseDelay = v }},
		{common.EmitIntervalEnv, func(v time.Duration) { s.Engine.EmitInterval = v }},
	}
	for _, e := range durations {
		v, ok, err := common.EnvDuration(e.name)
		if err != nil {
			return err
		}
		if ok {
			e.set(v)
		}
	}
	if v, ok, err := common.EnvBool(common.AbortOnFailureEnv); err != nil {
		return err
	} else if ok {
		s.Engine.AbortOnFailure = v
	}
	if v, ok, err := common.EnvBool(common.DebugEnv); err != nil {
		return err
	} else if ok {
		s.Debug = v
	}
	if v := os.Getenv(common.TrashDirEnv); v != "" {
		s.TrashDir = v
	}
	if v := os.Getenv(common.DaemonURIEnv); v != "" {
		s.DaemonURI = v
	}
	if v := os.Getenv(common.ListenEnv); v != "" {
		s.Listen = v
	}
	if v := os.Getenv(common.SecretEnv); v != "" {
		s.Secret = v
	}
	return nil
}

func (s *settings) applyFlags(ctx *cli.Context) {
	if ctx.GlobalIsSet("io-limit") {
		s.Engine.Limits[warpops.CategoryIO] = ctx.GlobalInt("io-limit")
	}
	if ctx.GlobalIsSet("cpu-limit") {
		s.Engine.Limits[warpops.CategoryCPU] = ctx.GlobalInt("cpu-limit")
	}
	if ctx.GlobalIsSet("max-attempts") {
		s.Engine.Retry.MaxAttempts = ctx.GlobalInt("max-attempts")
	}
	if v := ctx.GlobalString("trash-dir"); v != "" {
		s.TrashDir = v
	}
	if ctx.GlobalBool("debug") {
		s.Debug = true
	}
}
