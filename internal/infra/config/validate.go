package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateSetup(cfg, ve)
	validateProcess(cfg, ve)
	validateLogger(cfg, ve)
	validateTracer(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateSetup(cfg *Config, ve *ValidationError) {
	s := cfg.Setup
	if s.RepoURL == "" {
		ve.Add("setup.repo_url must not be empty")
	} else if u, err := url.Parse(s.RepoURL); err != nil || u.Scheme == "" {
		ve.Add("setup.repo_url %q is not a valid URL", s.RepoURL)
	}

	if s.CheckoutDir == "" {
		ve.Add("setup.checkout_dir must not be empty")
	} else if strings.ContainsAny(s.CheckoutDir, `/\`) || s.CheckoutDir == "." || s.CheckoutDir == ".." {
		ve.Add("setup.checkout_dir %q must be a single directory name", s.CheckoutDir)
	}

	relative := map[string]string{
		"setup.config_file":        s.ConfigFile,
		"setup.keys_dir":           s.KeysDir,
		"setup.keystore_generator": s.KeystoreGenerator,
		"setup.main_program":       s.MainProgram,
	}
	for field, value := range relative {
		if value == "" {
			ve.Add("%s must not be empty", field)
			continue
		}
		if filepath.IsAbs(value) || strings.HasPrefix(filepath.ToSlash(filepath.Clean(value)), "../") {
			ve.Add("%s %q must be relative to the checkout directory", field, value)
		}
	}

	for field, value := range map[string]string{"setup.btc_key_file": s.BtcKeyFile, "setup.esc_key_file": s.EscKeyFile} {
		if value == "" || strings.ContainsAny(value, `/\`) {
			ve.Add("%s %q must be a plain file name", field, value)
		}
	}
	if s.BtcKeyFile != "" && s.BtcKeyFile == s.EscKeyFile {
		ve.Add("setup.btc_key_file and setup.esc_key_file must differ")
	}
}

func validateProcess(cfg *Config, ve *ValidationError) {
	if cfg.Process.StderrTailMax < 0 {
		ve.Add("process.stderr_tail_bytes must be >= 0")
	}
	if cfg.Process.VersionTimeout <= 0 {
		ve.Add("process.version_timeout must be > 0")
	}
	for i, tok := range cfg.Process.PromptTokens {
		if strings.TrimSpace(tok) == "" {
			ve.Add("process.prompt_tokens[%d] must not be blank", i)
		}
	}
}

var validLogLevels = map[string]bool{"": true, "debug": true, "info": true, "warn": true, "warning": true, "error": true}

var validLogFormats = map[string]bool{"": true, "text": true, "json": true}

func validateLogger(cfg *Config, ve *ValidationError) {
	if !validLogLevels[strings.ToLower(cfg.Logger.Level)] {
		ve.Add("logger.level %q is invalid (want: debug, info, warn, error)", cfg.Logger.Level)
	}
	if !validLogFormats[strings.ToLower(cfg.Logger.Format)] {
		ve.Add("logger.format %q is invalid (want: text, json)", cfg.Logger.Format)
	}
}

func validateTracer(cfg *Config, ve *ValidationError) {
	if !cfg.Tracer.Enabled {
		return
	}
	switch cfg.Tracer.Exporter {
	case "stdout", "noop", "":
	default:
		ve.Add("tracer.exporter %q is invalid (want: stdout, noop)", cfg.Tracer.Exporter)
	}
}
