package config

import (
	"runtime"
	"strings"
	"testing"
)

func TestValidateDefaultsPass(t *testing.T) {
	cfg := Defaults()
	if err := Validate(cfg); err != nil {
		t.Fatalf("Defaults should pass validation: %v", err)
	}
}

func TestValidateRepoURL(t *testing.T) {
	cfg := Defaults()
	cfg.Setup.RepoURL = ""
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	assertContains(t, err.Error(), "setup.repo_url must not be empty")

	cfg.Setup.RepoURL = "not a url"
	err = Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	assertContains(t, err.Error(), `setup.repo_url "not a url" is not a valid URL`)
}

func TestValidateCheckoutDir(t *testing.T) {
	for _, dir := range []string{"", "a/b", `a\b`, ".", ".."} {
		cfg := Defaults()
		cfg.Setup.CheckoutDir = dir
		if err := Validate(cfg); err == nil {
			t.Errorf("checkout_dir %q: expected validation error", dir)
		}
	}
}

func TestValidateRelativePaths(t *testing.T) {
	cfg := Defaults()
	cfg.Setup.ConfigFile = "../outside.yaml"
	cfg.Setup.MainProgram = ""
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	assertContains(t, err.Error(), "setup.config_file")
	assertContains(t, err.Error(), "must be relative to the checkout directory")
	assertContains(t, err.Error(), "setup.main_program must not be empty")
}

func TestValidateAbsolutePath(t *testing.T) {
	cfg := Defaults()
	if runtime.GOOS == "windows" {
		cfg.Setup.KeysDir = `C:\keys`
	} else {
		cfg.Setup.KeysDir = "/keys"
	}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	assertContains(t, err.Error(), "setup.keys_dir")
}

func TestValidateKeyFiles(t *testing.T) {
	cfg := Defaults()
	cfg.Setup.EscKeyFile = cfg.Setup.BtcKeyFile
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	assertContains(t, err.Error(), "must differ")

	cfg = Defaults()
	cfg.Setup.BtcKeyFile = "keys/btc"
	err = Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	assertContains(t, err.Error(), "must be a plain file name")
}

func TestValidateProcess(t *testing.T) {
	cfg := Defaults()
	cfg.Process.StderrTailMax = -1
	cfg.Process.VersionTimeout = 0
	cfg.Process.PromptTokens = []string{"?", "  "}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	assertContains(t, err.Error(), "process.stderr_tail_bytes must be >= 0")
	assertContains(t, err.Error(), "process.version_timeout must be > 0")
	assertContains(t, err.Error(), "process.prompt_tokens[1] must not be blank")
}

func TestValidateLogger(t *testing.T) {
	cfg := Defaults()
	cfg.Logger.Level = "verbose"
	cfg.Logger.Format = "xml"
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	assertContains(t, err.Error(), `logger.level "verbose" is invalid`)
	assertContains(t, err.Error(), `logger.format "xml" is invalid`)
}

func TestValidateLoggerCaseInsensitive(t *testing.T) {
	cfg := Defaults()
	cfg.Logger.Level = "DEBUG"
	cfg.Logger.Format = "JSON"
	if err := Validate(cfg); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateTracer(t *testing.T) {
	cfg := Defaults()
	cfg.Tracer.Exporter = "jaeger"
	if err := Validate(cfg); err != nil {
		t.Errorf("disabled tracer should not be validated: %v", err)
	}

	cfg.Tracer.Enabled = true
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	assertContains(t, err.Error(), `tracer.exporter "jaeger" is invalid`)
}

func TestValidationErrorCollectsAll(t *testing.T) {
	cfg := Defaults()
	cfg.Setup.RepoURL = ""
	cfg.Process.VersionTimeout = 0
	cfg.Logger.Level = "loud"

	err := Validate(cfg)
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("error type = %T, want *ValidationError", err)
	}
	if len(ve.Errors) != 3 {
		t.Errorf("len(Errors) = %d, want 3: %v", len(ve.Errors), ve.Errors)
	}
	assertContains(t, ve.Error(), "config validation failed:")
}

func runtimeIsWindows() bool {
	return runtime.GOOS == "windows"
}

func assertContains(t *testing.T, s, substr string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Errorf("expected %q to contain %q", s, substr)
	}
}
