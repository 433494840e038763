package workflow

import (
	"context"
	"fmt"
	"os"
	"path"

	"go.opentelemetry.io/otel/attribute"

	"arbiter-launcher/internal/domain"
	"arbiter-launcher/internal/infra/tracer"
	"arbiter-launcher/internal/security"
	"arbiter-launcher/internal/usecase/eventbus"
	"arbiter-launcher/internal/usecase/locator"
	"arbiter-launcher/internal/usecase/process"
	"arbiter-launcher/internal/usecase/sequencer"
)

// Pipeline step names. They double as error subsystems.
const (
	stepCheckGo  = "check-go"
	stepClone    = "clone"
	stepTidy     = "tidy"
	stepPatch    = "patch-config"
	stepKeysDir  = "keys-dir"
	stepKeystore = "keystore"
	stepLaunch   = "launch"
)

// step is one awaited unit of the setup pipeline.
type step struct {
	name string
	run  func(ctx context.Context) error
}

// run checks the toolchain, picks the fast or full path and executes it.
func (s *Session) run(ctx context.Context, target string, chosen *domain.SetupPath) error {
	goBin, err := s.checkGo(ctx)
	if err != nil {
		return err
	}

	checkout := s.cfg.CheckoutPath(target)
	if s.IsSetupComplete(target) {
		*chosen = domain.SetupPathFast
		domain.Output(s.sink, "Setup already complete. Running main program...\n")
		return s.runSteps(ctx, []step{
			s.tidyStep(goBin, checkout),
			s.launchStep(goBin, checkout),
		})
	}

	*chosen = domain.SetupPathFull
	domain.Output(s.sink, "Setup required. Starting setup process...\n")

	creds, err := s.collectCredentials(ctx)
	if err != nil {
		return err
	}

	btcOut := path.Join(s.cfg.KeysDir, s.cfg.BtcKeyFile)
	escOut := path.Join(s.cfg.KeysDir, s.cfg.EscKeyFile)
	return s.runSteps(ctx, []step{
		s.cloneStep(target, checkout),
		s.tidyStep(goBin, checkout),
		s.patchStep(checkout, creds.ArbiterAddress),
		s.keysDirStep(checkout, btcOut, escOut),
		s.keystoreStep(goBin, checkout, "btc", creds.BtcPrivateKey, creds.Password, btcOut),
		s.keystoreStep(goBin, checkout, "eth", creds.EscPrivateKey, creds.Password, escOut),
		s.launchStep(goBin, checkout),
	})
}

// runSteps executes steps in order, checking for cancellation between them.
func (s *Session) runSteps(ctx context.Context, steps []step) error {
	for i, st := range steps {
		if err := ctx.Err(); err != nil {
			return domain.NewSubSystemError("workflow", "Session.runSteps", domain.ErrCancelled,
				fmt.Sprintf("before %s", st.name))
		}

		stepCtx, span := tracer.Start(ctx, st.name, attribute.Int("index", i))
		eventbus.Emit(stepCtx, s.bus, domain.EventWorkflowStep, s.id, map[string]any{"step": st.name, "index": i})
		s.logger.Debug("workflow step", "step", st.name, "index", i)

		err := st.run(stepCtx)
		tracer.End(span, err)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) checkGo(ctx context.Context) (goBin string, err error) {
	ctx, span := tracer.Start(ctx, stepCheckGo)
	defer func() { tracer.End(span, err) }()

	goBin, err = s.tools.Find(locator.ToolGo)
	if err != nil {
		return "", err
	}
	version, err := s.tools.Version(ctx, goBin, "version")
	if err != nil {
		return "", fmt.Errorf("failed to check Go installation: %w", err)
	}
	domain.Output(s.sink, fmt.Sprintf("Go installation found: %s\n", version))
	return goBin, nil
}

// collectCredentials starts the wizard and blocks until it completes or
// ctx is cancelled.
func (s *Session) collectCredentials(ctx context.Context) (domain.Credentials, error) {
	done := make(chan domain.Credentials, 1)
	seq := sequencer.New(s.sink, func(c domain.Credentials) { done <- c })

	s.mu.Lock()
	s.seq = seq
	s.mu.Unlock()
	seq.Start()

	select {
	case creds := <-done:
		eventbus.Emit(ctx, s.bus, domain.EventWizardCompleted, s.id, nil)
		s.logger.Info("credentials collected")
		return creds, nil
	case <-ctx.Done():
		return domain.Credentials{}, domain.NewSubSystemError("wizard", "Session.collectCredentials", domain.ErrCancelled, "")
	}
}

func (s *Session) cloneStep(target, checkout string) step {
	return step{name: stepClone, run: func(ctx context.Context) error {
		if dirNonEmpty(checkout) {
			domain.Output(s.sink, "Directory already exists, skipping clone...\n")
			return nil
		}
		gitBin, err := s.tools.Find(locator.ToolGit)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(target, 0o755); err != nil {
			return domain.NewSubSystemError(stepClone, "Session.clone", domain.ErrInvalidInput,
				fmt.Sprintf("create target directory %s: %v", target, err))
		}
		domain.Output(s.sink, "Cloning repository...\n")
		_, err = s.exec.Run(ctx, process.Command{
			Step: stepClone,
			Path: gitBin,
			Args: []string{"clone", s.cfg.RepoURL, s.cfg.CheckoutDir},
			Dir:  target,
		})
		if err != nil {
			return err
		}
		domain.Output(s.sink, "Repository cloned successfully\n")
		return nil
	}}
}

func (s *Session) tidyStep(goBin, checkout string) step {
	return step{name: stepTidy, run: func(ctx context.Context) error {
		domain.Output(s.sink, "Running go mod tidy...\n")
		if _, err := s.exec.Run(ctx, process.Command{
			Step: stepTidy,
			Path: goBin,
			Args: []string{"mod", "tidy"},
			Dir:  checkout,
		}); err != nil {
			return err
		}
		domain.Output(s.sink, "go mod tidy completed successfully\n")
		return nil
	}}
}

func (s *Session) patchStep(checkout, address string) step {
	return step{name: stepPatch, run: func(ctx context.Context) error {
		tree, err := security.NewTree(checkout)
		if err != nil {
			return domain.NewSubSystemError(stepPatch, "Session.patch", domain.ErrConfigPatchFailed, err.Error())
		}
		cfgPath, err := tree.Resolve(s.cfg.ConfigFile)
		if err != nil {
			s.logger.Warn("signer config outside checkout", "root", tree.Root(), "file", s.cfg.ConfigFile)
			return err
		}
		if err := s.patch(cfgPath, address); err != nil {
			return err
		}
		domain.Output(s.sink, "Successfully updated config file\n")
		eventbus.Emit(ctx, s.bus, domain.EventConfigPatched, s.id, map[string]string{
			"path":              cfgPath,
			"escArbiterAddress": address,
		})
		return nil
	}}
}

// keysDirStep creates the keys directory. Keystore outputs must land inside
// the checkout, so a symlinked keys path is refused before any key is written.
func (s *Session) keysDirStep(checkout string, outputs ...string) step {
	return step{name: stepKeysDir, run: func(context.Context) error {
		tree, err := security.NewTree(checkout)
		if err != nil {
			return domain.NewSubSystemError(stepKeystore, "Session.keysDir", domain.ErrInvalidInput, err.Error())
		}
		dir, err := tree.Resolve(s.cfg.KeysDir)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return domain.NewSubSystemError(stepKeystore, "Session.keysDir", domain.ErrInvalidInput,
				fmt.Sprintf("create keys directory %s: %v", dir, err))
		}
		for _, out := range outputs {
			if _, err := tree.Resolve(out); err != nil {
				return err
			}
		}
		domain.Output(s.sink, "\nStarting keystore generation...\n")
		return nil
	}}
}

// keystoreStep runs the signer's keystore generator for one chain. The
// private key and password travel as arguments, so the command is marked
// sensitive.
func (s *Session) keystoreStep(goBin, checkout, chain, key, password, out string) step {
	return step{name: stepKeystore + "-" + chain, run: func(ctx context.Context) error {
		domain.Output(s.sink, fmt.Sprintf("Generating %s keystore...\n", chain))
		_, err := s.exec.Run(ctx, process.Command{
			Step:      stepKeystore,
			Path:      goBin,
			Args:      []string{"run", s.cfg.KeystoreGenerator, "-c", chain, "-s", key, "-p", password, "-o", out},
			Dir:       checkout,
			Sensitive: true,
		})
		return err
	}}
}

func (s *Session) launchStep(goBin, checkout string) step {
	return step{name: stepLaunch, run: func(ctx context.Context) error {
		domain.Output(s.sink, "Starting main program...\n")
		_, err := s.exec.Run(ctx, process.Command{
			Step: stepLaunch,
			Path: goBin,
			Args: []string{"run", s.cfg.MainProgram},
			Dir:  checkout,
		})
		return err
	}}
}

func dirNonEmpty(dir string) bool {
	entries, err := os.ReadDir(dir)
	return err == nil && len(entries) > 0
}
