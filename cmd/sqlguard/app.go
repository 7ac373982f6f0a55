package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/tduhfajd/sql-guard/governance"
	"github.com/tduhfajd/sql-guard/governance/pii"
	"github.com/tduhfajd/sql-guard/governance/policy"
	"github.com/tduhfajd/sql-guard/governance/quota"
	"github.com/tduhfajd/sql-guard/governance/sqlscan"
	"github.com/tduhfajd/sql-guard/shared/logger"
)

// app holds the wired governance components for one command.
type app struct {
	cfg      governance.Config
	analyzer *sqlscan.Analyzer
	redactor *pii.Redactor
	engine   *policy.Engine
	store    *policy.Store
	policies *policy.Service
	limiter  *quota.Limiter
	registry *prometheus.Registry
	pipeline *governance.Pipeline

	closers []func() error
}

type appOptions struct {
	// execute opens the target database.
	execute bool
	// quota enables execution quotas.
	quota bool
	// logs receives structured logs. Default: stdout.
	logs io.Writer
}

// newApp wires every component from cfg. Policies come from the policy
// database when one is configured, otherwise from the policy file, otherwise
// from the built-in defaults held in memory.
func newApp(ctx context.Context, cfg governance.Config, opts appOptions) (*app, error) {
	a := &app{cfg: cfg, registry: prometheus.NewRegistry()}
	logs := opts.logs
	if logs == nil {
		logs = os.Stdout
	}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	var err error
	if a.analyzer, err = sqlscan.NewAnalyzerFromConfig(cfg.Analyzer); err != nil {
		return nil, err
	}
	if a.redactor, err = pii.NewRedactorFromConfig(cfg.PII); err != nil {
		return nil, err
	}
	weights, err := cfg.Policy.Weights()
	if err != nil {
		return nil, err
	}
	a.engine = policy.NewEngine(
		policy.WithRiskWeights(weights),
		policy.WithLogger(logger.NewWithWriter("policy-engine", logs)),
	)
	a.store = policy.NewStore(nil)

	backend, err := a.openPolicyBackend(ctx)
	if err != nil {
		return nil, err
	}
	a.policies = policy.NewService(backend, a.store, a.engine, a.analyzer,
		policy.WithServiceLogger(logger.NewWithWriter("policy-service", logs)))
	if cfg.Policy.SeedDefaults {
		if _, err := a.policies.Seed(ctx, policy.DefaultPolicies()); err != nil {
			return nil, err
		}
	} else if err := a.policies.Sync(ctx); err != nil {
		return nil, err
	}

	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	pipelineOpts := []governance.Option{
		governance.WithMetrics(governance.NewMetrics(a.registry)),
		governance.WithBlockOnInjection(cfg.Analyzer.BlockOnInjection),
		governance.WithLogger(logger.NewWithWriter("governance", logs)),
		governance.WithAuditSink(governance.NewLogAuditSink(logger.NewWithWriter("audit", logs), a.redactor)),
	}

	if opts.quota {
		limiter, closeQuota, err := quota.Open(ctx, cfg.Quota, quota.WithLogger(logger.NewWithWriter("quota", logs)))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, closeQuota)
		if limiter != nil {
			a.limiter = limiter
			pipelineOpts = append(pipelineOpts, governance.WithQuota(limiter))
		}
	}

	if opts.execute && cfg.Target.DSN != "" {
		db, dialect, err := policy.OpenDB(ctx, cfg.Target.Driver, cfg.Target.DSN)
		if err != nil {
			return nil, fmt.Errorf("target database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		pipelineOpts = append(pipelineOpts, governance.WithExecutor(governance.NewSQLExecutor(db, dialect)))
	}

	a.pipeline = governance.NewPipeline(a.analyzer, a.engine, a.store, a.redactor, pipelineOpts...)
	ok = true
	return a, nil
}

func (a *app) openPolicyBackend(ctx context.Context) (policy.Backend, error) {
	switch {
	case a.cfg.Policy.DSN != "":
		db, dialect, err := policy.OpenDB(ctx, a.cfg.Policy.Driver, a.cfg.Policy.DSN)
		if err != nil {
			return nil, fmt.Errorf("policy database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		repo := policy.NewRepository(db, dialect)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return repo, nil
	case a.cfg.Policy.File != "":
		policies, err := policy.FileSource{Path: a.cfg.Policy.File}.ListAll(ctx)
		if err != nil {
			return nil, err
		}
		return policy.NewMemoryRepository(policies...), nil
	default:
		return policy.NewMemoryRepository(), nil
	}
}

// Close releases database and Redis connections.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
	a.closers = nil
}
