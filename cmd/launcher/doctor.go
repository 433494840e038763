package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"arbiter-launcher/internal/domain"
	"arbiter-launcher/internal/infra/config"
	"arbiter-launcher/internal/usecase/locator"
)

// CheckStatus represents the result of a health check.
type CheckStatus string

const (
	StatusPass CheckStatus = "PASS"
	StatusWarn CheckStatus = "WARN"
	StatusFail CheckStatus = "FAIL"
)

// CheckResult holds the outcome of a single health check.
type CheckResult struct {
	Name    string
	Status  CheckStatus
	Message string
	Fix     string // optional fix suggestion
}

// Check is a named health check function.
type Check struct {
	Name string
	Fn   func(cfg *config.Config) CheckResult
}

// toolFinder is the part of locator.Locator the doctor needs.
type toolFinder interface {
	Find(tool locator.Tool) (string, error)
	Version(ctx context.Context, path string, args ...string) (string, error)
}

// runDoctor executes all health checks and reports results.
func runDoctor() error {
	cfgPath := configPath()

	// Most checks still run on defaults when the file is broken.
	cfg, cfgErr := loadConfig()
	if cfg == nil {
		cfg = config.Defaults()
	}

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	tools := locator.New(cfg.Process.VersionTimeout, quiet)

	checks := []Check{
		{Name: "Config file", Fn: checkConfigFile(cfgPath, cfgErr)},
		{Name: "Go", Fn: checkTool(tools, locator.ToolGo, "https://go.dev/dl/")},
		{Name: "Git", Fn: checkTool(tools, locator.ToolGit, "https://git-scm.com/downloads")},
		{Name: "Setup directory", Fn: checkTargetDir},
		{Name: "Disk space", Fn: checkDiskSpace},
		{Name: "Repository host", Fn: checkRepoHost},
	}

	results := runChecks(checks, cfg)
	return report(os.Stdout, results)
}

func runChecks(checks []Check, cfg *config.Config) []CheckResult {
	results := make([]CheckResult, 0, len(checks))
	for _, check := range checks {
		result := check.Fn(cfg)
		result.Name = check.Name
		results = append(results, result)
	}
	return results
}

// report prints results and returns an error when any check failed.
func report(w io.Writer, results []CheckResult) error {
	fmt.Fprintln(w, "arbiter-launcher doctor")
	fmt.Fprintln(w, strings.Repeat("=", 50))
	fmt.Fprintln(w)

	var pass, warn, fail int
	for _, result := range results {
		fmt.Fprintf(w, "  %s %s: %s\n", statusIcon(result.Status), result.Name, result.Message)
		if result.Fix != "" {
			fmt.Fprintf(w, "      Fix: %s\n", result.Fix)
		}

		switch result.Status {
		case StatusPass:
			pass++
		case StatusWarn:
			warn++
		case StatusFail:
			fail++
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("-", 50))
	fmt.Fprintf(w, "Results: %d passed, %d warnings, %d failed\n", pass, warn, fail)

	if fail > 0 {
		fmt.Fprintln(w, "\nFix the FAIL issues above before setting up the signer.")
		return fmt.Errorf("%d check(s) failed", fail)
	}
	if warn > 0 {
		fmt.Fprintln(w, "\nSetup should work, but consider addressing the warnings.")
	} else {
		fmt.Fprintln(w, "\nAll checks passed! Ready to set up the Arbiter Signer.")
	}
	return nil
}

func statusIcon(s CheckStatus) string {
	switch s {
	case StatusPass:
		return "[PASS]"
	case StatusWarn:
		return "[WARN]"
	case StatusFail:
		return "[FAIL]"
	default:
		return "[????]"
	}
}

// checkConfigFile returns a check that verifies the config file parses.
// A missing file is fine; the defaults apply.
func checkConfigFile(cfgPath string, cfgErr error) func(*config.Config) CheckResult {
	return func(_ *config.Config) CheckResult {
		if cfgErr != nil {
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("config file error: %v", cfgErr),
				Fix:     fmt.Sprintf("Fix or remove %s", cfgPath),
			}
		}
		if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
			return CheckResult{
				Status:  StatusPass,
				Message: "no config file, using defaults",
			}
		}
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("config loaded from %s", cfgPath),
		}
	}
}

// checkTool returns a check that locates a binary and reads its version.
func checkTool(tools toolFinder, tool locator.Tool, download string) func(*config.Config) CheckResult {
	return func(_ *config.Config) CheckResult {
		path, err := tools.Find(tool)
		if err != nil {
			return CheckResult{
				Status:  StatusFail,
				Message: err.Error(),
				Fix:     fmt.Sprintf("Install it from %s and make sure it is on PATH", download),
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		version, err := tools.Version(ctx, path, "version")
		if errors.Is(err, domain.ErrBinaryNotFound) {
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("%s binary not found", tool),
				Fix:     fmt.Sprintf("Install it from %s and make sure it is on PATH", download),
			}
		}
		if err != nil {
			return CheckResult{
				Status:  StatusWarn,
				Message: fmt.Sprintf("found at %s but the version check failed: %v", path, err),
			}
		}
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("%s (%s)", version, path),
		}
	}
}

// checkTargetDir verifies the configured setup directory can be written.
func checkTargetDir(cfg *config.Config) CheckResult {
	if cfg == nil || cfg.Setup.TargetDir == "" {
		return CheckResult{
			Status:  StatusPass,
			Message: "no directory configured, it is chosen at startup",
		}
	}

	dir := cfg.Setup.TargetDir
	checkout := cfg.Setup.CheckoutPath(dir)
	if _, err := os.Stat(filepath.Join(checkout, ".git")); err == nil {
		if _, err := os.Stat(cfg.Setup.ConfigPath(dir)); err != nil {
			return CheckResult{
				Status:  StatusWarn,
				Message: fmt.Sprintf("existing checkout at %s has no %s, the config patch will fail", checkout, cfg.Setup.ConfigFile),
			}
		}
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("existing checkout at %s, clone will be skipped", checkout),
		}
	}

	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("%s will be created", dir),
		}
	}
	if err != nil || !info.IsDir() {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("%s is not a directory", dir),
			Fix:     "Pass a different directory with --dir",
		}
	}

	probe, err := os.CreateTemp(dir, ".arbiter-launcher-*")
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("%s is not writable", dir),
			Fix:     "Check the directory permissions or pass a different directory with --dir",
		}
	}
	probe.Close()
	os.Remove(probe.Name())

	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("%s is writable", dir),
	}
}

func checkDiskSpace(cfg *config.Config) CheckResult {
	dir := "."
	if cfg != nil && cfg.Setup.TargetDir != "" {
		dir = cfg.Setup.TargetDir
	}
	absDir, _ := filepath.Abs(dir)

	// df needs an existing path; walk up to the nearest one.
	for {
		if _, err := os.Stat(absDir); err == nil {
			break
		}
		parent := filepath.Dir(absDir)
		if parent == absDir {
			break
		}
		absDir = parent
	}

	out, err := exec.Command("df", "-h", absDir).Output()
	if err != nil {
		return CheckResult{
			Status:  StatusWarn,
			Message: "could not determine disk space (df command failed)",
		}
	}
	return parseDF(string(out))
}

// parseDF reads the last line of `df -h` output.
func parseDF(out string) CheckResult {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) < 2 {
		return CheckResult{
			Status:  StatusWarn,
			Message: "unexpected df output format",
		}
	}

	fields := strings.Fields(lines[len(lines)-1])
	if len(fields) < 5 {
		return CheckResult{
			Status:  StatusWarn,
			Message: "unexpected df output format",
		}
	}

	available := fields[3]
	usePercent := fields[4]

	var pct int
	fmt.Sscanf(strings.TrimSuffix(usePercent, "%"), "%d", &pct)
	if pct >= 95 {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("disk %s full (%s available)", usePercent, available),
			Fix:     "The signer checkout and its Go module cache need a few hundred MB",
		}
	}
	if pct >= 85 {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("disk %s full (%s available)", usePercent, available),
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("%s available (%s used)", available, usePercent),
	}
}

// checkRepoHost dials the host the signer repository is cloned from.
func checkRepoHost(cfg *config.Config) CheckResult {
	addr, err := repoHostAddr(cfg.Setup.RepoURL)
	if err != nil {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("cannot parse repository URL: %v", err),
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("cannot reach %s; cloning will fail unless the checkout exists", addr),
			Fix:     "Check your network connection and firewall settings",
		}
	}
	conn.Close()

	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("%s reachable", addr),
	}
}

// repoHostAddr returns host:port for an http(s) or ssh repository URL.
func repoHostAddr(repoURL string) (string, error) {
	// scp-like syntax: git@github.com:org/repo.git
	if !strings.Contains(repoURL, "://") {
		if at := strings.Index(repoURL, "@"); at >= 0 {
			if colon := strings.Index(repoURL[at:], ":"); colon > 0 {
				return net.JoinHostPort(repoURL[at+1:at+colon], "22"), nil
			}
		}
		return "", fmt.Errorf("unsupported repository URL %q", repoURL)
	}

	u, err := url.Parse(repoURL)
	if err != nil {
		return "", err
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("repository URL %q has no host", repoURL)
	}
	if port := u.Port(); port != "" {
		return net.JoinHostPort(u.Hostname(), port), nil
	}
	switch u.Scheme {
	case "http":
		return net.JoinHostPort(u.Hostname(), "80"), nil
	case "git":
		return net.JoinHostPort(u.Hostname(), "9418"), nil
	case "ssh":
		return net.JoinHostPort(u.Hostname(), "22"), nil
	default:
		return net.JoinHostPort(u.Hostname(), "443"), nil
	}
}
