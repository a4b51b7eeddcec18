// Package certify periodically re-simulates every configured banner and
// exports the chi-square verdict.
package certify

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/xtding233/gacha-economy/internal/gacha"
	"github.com/xtding233/gacha-economy/internal/metrics"
	"github.com/xtding233/gacha-economy/internal/pull"
)

type Simulator interface {
	Simulate(ctx context.Context, scopeID string, drawCount int) (pull.SimulationResult, error)
}

type Scopes interface {
	ScopeIDs(ctx context.Context) ([]string, error)
}

// Verdict is one banner's certification outcome.
type Verdict struct {
	ScopeID string                `json:"scopeId"`
	Seed    uint64                `json:"seed"`
	Result  gacha.ChiSquareResult `json:"result"`
	Err     string                `json:"error,omitempty"`
}

type Certifier struct {
	sim    Simulator
	scopes Scopes
	draws  int
	spec   string
	cron   *cron.Cron
	logger zerolog.Logger

	mu   sync.Mutex
	last []Verdict
}

// New builds a certifier running on a standard cron spec. An empty spec
// leaves it idle; RunOnce still works.
func New(sim Simulator, scopes Scopes, spec string, draws int, logger zerolog.Logger) (*Certifier, error) {
	if spec != "" {
		if _, err := cron.ParseStandard(spec); err != nil {
			return nil, fmt.Errorf("certify schedule %q: %w", spec, err)
		}
	}
	logger = logger.With().Str("component", "certify").Logger()
	cl := cronLogger{logger}
	return &Certifier{
		sim:    sim,
		scopes: scopes,
		draws:  draws,
		spec:   spec,
		cron:   cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)), cron.WithLogger(cl)),
		logger: logger,
	}, nil
}

// Start schedules the job. It does nothing without a schedule.
func (c *Certifier) Start() error {
	if c.spec == "" {
		c.logger.Info().Msg("certification schedule not set, job disabled")
		return nil
	}
	if _, err := c.cron.AddFunc(c.spec, func() {
		if _, err := c.RunOnce(context.Background()); err != nil {
			c.logger.Error().Err(err).Msg("certification run failed")
		}
	}); err != nil {
		return err
	}
	c.cron.Start()
	c.logger.Info().Str("schedule", c.spec).Int("draws", c.draws).Msg("certification job scheduled")
	return nil
}

// Stop halts scheduling and waits for a running job, or for ctx.
func (c *Certifier) Stop(ctx context.Context) error {
	select {
	case <-c.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce certifies every scope and records the verdicts. A banner that fails
// to simulate gets a verdict carrying the error; it does not stop the others.
func (c *Certifier) RunOnce(ctx context.Context) ([]Verdict, error) {
	ids, err := c.scopes.ScopeIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list scopes: %w", err)
	}

	verdicts := make([]Verdict, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, id := range ids {
		g.Go(func() error {
			verdicts[i] = c.certify(gctx, id)
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(verdicts, func(i, j int) bool { return verdicts[i].ScopeID < verdicts[j].ScopeID })
	failed := 0
	for _, v := range verdicts {
		if !v.Result.WithinTolerance {
			failed++
		}
	}
	c.logger.Info().Int("banners", len(verdicts)).Int("failed", failed).Msg("certification run finished")

	c.mu.Lock()
	c.last = verdicts
	c.mu.Unlock()
	return verdicts, nil
}

func (c *Certifier) certify(ctx context.Context, scopeID string) Verdict {
	res, err := c.sim.Simulate(ctx, scopeID, c.draws)
	if err != nil {
		c.logger.Warn().Err(err).Str("scope", scopeID).Msg("banner simulation failed")
		metrics.RecordCertification(scopeID, 0, false)
		return Verdict{ScopeID: scopeID, Err: err.Error()}
	}
	chi := res.ChiSquare
	metrics.RecordCertification(scopeID, chi.Statistic, chi.WithinTolerance)
	if !chi.WithinTolerance {
		c.logger.Warn().
			Str("scope", scopeID).
			Uint64("seed", res.Seed).
			Float64("p_value", chi.PValue).
			Msg("banner outside tolerance")
	}
	return Verdict{ScopeID: scopeID, Seed: res.Seed, Result: chi}
}

// Last returns the verdicts of the most recent run.
func (c *Certifier) Last() []Verdict {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Verdict(nil), c.last...)
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct{ l zerolog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
