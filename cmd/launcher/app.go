package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"arbiter-launcher/internal/domain"
	"arbiter-launcher/internal/infra/config"
	"arbiter-launcher/internal/infra/logger"
	"arbiter-launcher/internal/infra/tracer"
	"arbiter-launcher/internal/usecase/eventbus"
	"arbiter-launcher/internal/usecase/locator"
	"arbiter-launcher/internal/usecase/process"
	"arbiter-launcher/internal/usecase/workflow"
)

// runtime holds the process-wide services shared by every front end.
type runtime struct {
	cfg     *config.Config
	log     *slog.Logger
	bus     *eventbus.Bus
	tools   *locator.Locator
	session *workflow.Session

	closers []func()
}

// newRuntime initializes logging, tracing and the lifecycle event bus.
func newRuntime(ctx context.Context, cfg *config.Config) (*runtime, error) {
	log, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, err
	}
	rt := &runtime{cfg: cfg, log: log}
	rt.closers = append(rt.closers, func() { closeLog() })

	shutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("tracer: %w", err)
	}
	rt.closers = append(rt.closers, func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			log.Warn("tracer shutdown failed", "error", err)
		}
	})

	rt.bus = eventbus.New(log)
	unsubscribe := eventbus.LogEvents(rt.bus, log)
	rt.closers = append(rt.closers, func() {
		unsubscribe()
		rt.bus.Close()
	})

	rt.tools = locator.New(cfg.Process.VersionTimeout, log)

	log.Info("arbiter-launcher starting",
		"repo", cfg.Setup.RepoURL,
		"target", cfg.Setup.TargetDir,
		"tracer", cfg.Tracer.Exporter,
	)
	return rt, nil
}

// wire builds the child-process runner and the setup session around sink.
func (rt *runtime) wire(sink domain.Sink) *workflow.Session {
	matcher := process.NewTokenMatcher(rt.cfg.Process.PromptTokens...)
	rt.log.Debug("prompt detection", "tokens", matcher.Tokens())

	runner := process.NewRunner(process.RunnerConfig{
		StderrPrefix:  rt.cfg.Process.StderrPrefix,
		StderrTailMax: rt.cfg.Process.StderrTailMax,
		Matcher:       matcher,
	}, sink, rt.bus, rt.log)

	rt.session = workflow.NewSession(rt.cfg.Setup, runner, rt.tools, sink, rt.bus, rt.log)
	rt.closers = append(rt.closers, rt.session.Close)
	return rt.session
}

// Close releases resources in reverse order of acquisition.
func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}
