package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level launcher configuration.
type Config struct {
	Setup   SetupConfig   `yaml:"setup"`
	Process ProcessConfig `yaml:"process"`
	Logger  LoggerConfig  `yaml:"logger"`
	Tracer  TracerConfig  `yaml:"tracer"`
}

// SetupConfig describes the signer checkout and the files the workflow touches.
// All paths except TargetDir are relative to the checkout directory.
type SetupConfig struct {
	RepoURL           string `yaml:"repo_url"`
	CheckoutDir       string `yaml:"checkout_dir"` // directory name created under the target dir
	TargetDir         string `yaml:"target_dir"`   // optional; skips the directory picker
	ConfigFile        string `yaml:"config_file"`  // signer YAML patched with the arbiter address
	KeysDir           string `yaml:"keys_dir"`
	BtcKeyFile        string `yaml:"btc_key_file"`
	EscKeyFile        string `yaml:"esc_key_file"`
	KeystoreGenerator string `yaml:"keystore_generator"`
	MainProgram       string `yaml:"main_program"`
}

// ProcessConfig tunes child process handling.
type ProcessConfig struct {
	StderrPrefix   string        `yaml:"stderr_prefix"`
	StderrTailMax  int           `yaml:"stderr_tail_bytes"`
	VersionTimeout time.Duration `yaml:"version_timeout"`
	PromptTokens   []string      `yaml:"prompt_tokens"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
	Output   string `yaml:"output"` // file for the stdout exporter; empty writes to stdout
}

// DefaultDataDir returns the launcher's state directory under $HOME/.arbiter-launcher.
// Falls back to "./.arbiter-launcher" if $HOME cannot be determined.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".arbiter-launcher"
	}
	return filepath.Join(home, ".arbiter-launcher")
}

// DefaultLogFile is where the terminal UI writes logs that would otherwise
// land on the alternate screen.
func DefaultLogFile() string {
	return filepath.Join(DefaultDataDir(), "launcher.log")
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Setup: SetupConfig{
			RepoURL:           "https://github.com/BeL2Labs/Arbiter_Signer/",
			CheckoutDir:       "Arbiter_Signer",
			ConfigFile:        "app/arbiter/manifest/config/config.yaml",
			KeysDir:           "app/arbiter/data/keys",
			BtcKeyFile:        "btcKey",
			EscKeyFile:        "escKey",
			KeystoreGenerator: "app/keystore-generator/main.go",
			MainProgram:       "app/arbiter/main.go",
		},
		Process: ProcessConfig{
			StderrPrefix:   "Error output: ",
			StderrTailMax:  4096,
			VersionTimeout: 10 * time.Second,
			PromptTokens:   []string{"?", "enter", "input"},
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
	}
}

// Load reads a YAML config file over the defaults and applies env var overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnvOverrides(cfg)
			if err := Validate(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	if err := validatePermissions(absPath); err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	ApplyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnvOverrides maps ARBITER_LAUNCHER_* env vars to config fields.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ARBITER_LAUNCHER_REPO_URL"); v != "" {
		cfg.Setup.RepoURL = v
	}
	if v := os.Getenv("ARBITER_LAUNCHER_CHECKOUT_DIR"); v != "" {
		cfg.Setup.CheckoutDir = v
	}
	if v := os.Getenv("ARBITER_LAUNCHER_TARGET_DIR"); v != "" {
		cfg.Setup.TargetDir = v
	}
	if v := os.Getenv("ARBITER_LAUNCHER_STDERR_TAIL_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Process.StderrTailMax = n
		}
	}
	if v := os.Getenv("ARBITER_LAUNCHER_VERSION_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Process.VersionTimeout = d
		}
	}
	if v := os.Getenv("ARBITER_LAUNCHER_PROMPT_TOKENS"); v != "" {
		cfg.Process.PromptTokens = splitAndTrim(v, ",")
	}
	if v := os.Getenv("ARBITER_LAUNCHER_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("ARBITER_LAUNCHER_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("ARBITER_LAUNCHER_LOGGER_OUTPUT"); v != "" {
		cfg.Logger.Output = v
	}
	if v := os.Getenv("ARBITER_LAUNCHER_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("ARBITER_LAUNCHER_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
	if v := os.Getenv("ARBITER_LAUNCHER_TRACER_OUTPUT"); v != "" {
		cfg.Tracer.Output = v
	}
}

// CheckoutPath returns the signer checkout directory under target.
func (s SetupConfig) CheckoutPath(target string) string {
	return filepath.Join(target, s.CheckoutDir)
}

// KeyPaths returns the BTC and ESC keystore paths under target.
func (s SetupConfig) KeyPaths(target string) (btc, esc string) {
	keys := filepath.Join(s.CheckoutPath(target), filepath.FromSlash(s.KeysDir))
	return filepath.Join(keys, s.BtcKeyFile), filepath.Join(keys, s.EscKeyFile)
}

// ConfigPath returns the signer config file path under target.
func (s SetupConfig) ConfigPath(target string) string {
	return filepath.Join(s.CheckoutPath(target), filepath.FromSlash(s.ConfigFile))
}

func splitAndTrim(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// validatePermissions checks the config file is not writable by group or others.
func validatePermissions(path string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	mode := info.Mode().Perm()
	// Allow 0600 and 0644 (readable by others but not writable)
	if mode&0o077 > 0o044 {
		return fmt.Errorf("config file %s has insecure permissions %o (want 0600 or 0644)", path, mode)
	}
	return nil
}
