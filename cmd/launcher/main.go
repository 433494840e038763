package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"arbiter-launcher/internal/adapter/console"
	"arbiter-launcher/internal/adapter/tui/launcher"
	"arbiter-launcher/internal/adapter/tui/uxerror"
	"arbiter-launcher/internal/domain"
	"arbiter-launcher/internal/infra/config"
	"arbiter-launcher/internal/infra/logger"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "--help", "-h", "help":
			showUsage()
			return
		}
	}

	if len(os.Args) < 2 || strings.HasPrefix(os.Args[1], "-") {
		if err := runTUI(); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
		return
	}

	switch os.Args[1] {
	case "run":
		if err := runConsole(); err != nil {
			fmt.Fprintf(os.Stderr, "run: %v\n", err)
			os.Exit(1)
		}
	case "doctor":
		if err := runDoctor(); err != nil {
			fmt.Fprintf(os.Stderr, "doctor: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\nRun 'arbiter-launcher --help' for usage information.\n", os.Args[1])
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`arbiter-launcher - set up and run the BeL2 Arbiter Signer

USAGE:
    arbiter-launcher [COMMAND] [FLAGS]

COMMANDS:
    run         Line-oriented console mode
    doctor      Check Go, Git and the setup directory

    (no command) - Interactive terminal UI

FLAGS:
    -h, --help         Show this help message
    --config PATH      Launcher config file (default: ~/.arbiter-launcher/config.yaml)
    --dir PATH         Directory to set up the signer in (skips the picker)

CONFIGURATION:
    Environment: ARBITER_LAUNCHER_* variables override the config file
    Logs (terminal UI): ~/.arbiter-launcher/launcher.log

EXAMPLES:
    arbiter-launcher                       # Pick a directory and set up
    arbiter-launcher --dir ~/signer        # Set up in ~/signer
    arbiter-launcher run --dir ~/signer    # Same, without the terminal UI
    arbiter-launcher doctor                # Check the toolchain`)
}

// flagValue returns the value of --name PATH or --name=PATH in args.
func flagValue(args []string, name string) string {
	for i, arg := range args {
		if arg == name && i+1 < len(args) {
			return args[i+1]
		}
		if v, ok := strings.CutPrefix(arg, name+"="); ok {
			return v
		}
	}
	return ""
}

func configPath() string {
	if p := flagValue(os.Args, "--config"); p != "" {
		return p
	}
	if p := os.Getenv("ARBITER_LAUNCHER_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(config.DefaultDataDir(), "config.yaml")
}

// loadConfig loads the launcher config and applies --dir.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfigLoad, err)
	}
	if dir := flagValue(os.Args, "--dir"); dir != "" {
		cfg.Setup.TargetDir = dir
	}
	if cfg.Setup.TargetDir != "" {
		abs, err := filepath.Abs(expandHome(cfg.Setup.TargetDir))
		if err != nil {
			return nil, fmt.Errorf("resolve setup directory: %w", err)
		}
		cfg.Setup.TargetDir = abs
	}
	return cfg, nil
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

func runTUI() error {
	cfg, err := loadConfig()
	if err != nil {
		return errors.New(uxerror.Humanize(err).Render())
	}

	// Anything written to the terminal would corrupt the alternate screen.
	if logger.IsConsole(cfg.Logger.Output) {
		cfg.Logger.Output = config.DefaultLogFile()
	}
	if cfg.Tracer.Enabled && cfg.Tracer.Exporter == "stdout" && cfg.Tracer.Output == "" {
		cfg.Tracer.Output = filepath.Join(config.DefaultDataDir(), "traces.jsonl")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer cancel()

	rt, err := newRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	sink := launcher.NewSink()
	session := rt.wire(sink)

	model := launcher.NewModel(ctx, session, launcher.Options{
		Target:       cfg.Setup.TargetDir,
		StderrPrefix: cfg.Process.StderrPrefix,
	})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	sink.Attach(p.Send)

	final, err := p.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("terminal UI: %w", err)
	}

	if m, ok := final.(launcher.Model); ok {
		if res, done := m.Result(); done && !res.Success {
			fmt.Fprintln(os.Stderr, uxerror.FromResult(res).Render())
		}
	}
	return nil
}

func runConsole() error {
	cfg, err := loadConfig()
	if err != nil {
		return errors.New(uxerror.Humanize(err).Render())
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rt, err := newRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	cons := console.New(os.Stdin, os.Stdout, rt.log)
	session := rt.wire(cons)

	report := session.CheckInstallation(ctx)
	for _, tool := range []domain.ToolStatus{report.Go, report.Git} {
		if tool.Installed {
			fmt.Fprintf(os.Stdout, "%s: %s\n", tool.Path, tool.Version)
		}
	}
	if !report.CanStart() {
		return errors.New(uxerror.FromResult(domain.SetupResult{Code: domain.CodeBinaryNotFound}).Render())
	}
	if !report.Git.Installed {
		fmt.Fprintln(os.Stdout, "Git was not found. An existing setup can still be launched, but cloning the repository will fail.")
	}

	target := cfg.Setup.TargetDir
	if target == "" {
		cwd, _ := os.Getwd()
		answer, err := cons.AskString("Directory to set up the Arbiter Signer in", cwd)
		if err != nil {
			return fmt.Errorf("read setup directory: %w", err)
		}
		target, err = filepath.Abs(expandHome(answer))
		if err != nil {
			return fmt.Errorf("resolve setup directory: %w", err)
		}
	}

	res := cons.Run(ctx, session, target)
	if !res.Success {
		return errors.New(uxerror.FromResult(res).Render())
	}
	return nil
}
