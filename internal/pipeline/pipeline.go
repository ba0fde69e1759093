// Package pipeline wires data, both simulators and the comparative analysis
// into a single run.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"cfd-hedge-backtest/internal/analysis"
	"cfd-hedge-backtest/internal/backtest"
	"cfd-hedge-backtest/internal/config"
	"cfd-hedge-backtest/internal/data"
	"cfd-hedge-backtest/internal/model"
	"cfd-hedge-backtest/internal/monitoring"
	"cfd-hedge-backtest/internal/strategy"
)

// Outcome is everything a run produces. It is shared between callers when
// served from the memo cache and must be treated as read-only.
type Outcome struct {
	Timeline *model.Timeline
	Config   config.Config
	Policy   string
	Classic  *backtest.Result
	Hedged   *backtest.Result
	Analysis *analysis.Report
}

type Options struct {
	Logger *zap.SugaredLogger
	// MemoTTL enables result memoization when positive.
	MemoTTL     time.Duration
	MemoEntries int
}

type Runner struct {
	log  *zap.SugaredLogger
	memo *data.Cache[*Outcome]
}

func NewRunner(opts Options) *Runner {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	r := &Runner{log: log}
	if opts.MemoTTL > 0 {
		r.memo = data.NewCache[*Outcome](opts.MemoTTL, opts.MemoEntries)
	}
	return r
}

func (r *Runner) Close() { r.memo.Close() }

type Request struct {
	Timeline *model.Timeline
	Config   *config.Config
	// OnDay streams hedged ledger rows as they are produced. Runs with
	// OnDay set bypass the memo cache.
	OnDay func(backtest.LedgerRow)
}

// Run simulates both models over the timeline and compares them.
func (r *Runner) Run(ctx context.Context, req Request) (*Outcome, error) {
	if req.Timeline == nil || req.Timeline.Len() == 0 {
		monitoring.RecordError(string(StageData))
		return nil, stageErr(StageData, model.ErrEmptyTimeline)
	}
	if req.Config == nil {
		monitoring.RecordError(string(StageSimulation))
		return nil, stageErr(StageSimulation, errors.New("config is nil"))
	}

	key := ""
	if r.memo != nil && req.OnDay == nil {
		key = memoKey(req.Timeline, req.Config)
	}
	if key != "" {
		if out, ok := r.memo.Get(key); ok {
			monitoring.RecordMemoHit()
			r.log.Debugw("[Pipeline] memo hit", "key", key[:12])
			return out, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := r.simulate(req)
	if err != nil {
		monitoring.RecordError(string(StageSimulation))
		return nil, stageErr(StageSimulation, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := r.analyze(out); err != nil {
		monitoring.RecordError(string(StageAnalysis))
		return nil, stageErr(StageAnalysis, err)
	}

	if key != "" {
		r.memo.Set(key, out)
	}
	return out, nil
}

// simulate runs both models concurrently; they share only read-only inputs.
func (r *Runner) simulate(req Request) (*Outcome, error) {
	defer observe(StageSimulation, time.Now())

	params := req.Config.Params()
	policy := strategy.FromParams(params.Hedge, params.Costs.LotSize)
	engine := backtest.New(backtest.Options{Logger: r.log, OnDay: req.OnDay})

	var (
		wg                  sync.WaitGroup
		classic, hedged     *backtest.Result
		classicErr, hedgErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		classic, classicErr = engine.RunClassic(req.Timeline, params)
	}()
	go func() {
		defer wg.Done()
		hedged, hedgErr = engine.RunHedged(req.Timeline, params, policy)
	}()
	wg.Wait()

	if err := errors.Join(classicErr, hedgErr); err != nil {
		return nil, err
	}

	for _, res := range []*backtest.Result{classic, hedged} {
		monitoring.RecordSimulation(res.Model, res.Summary.Anomalies, res.Summary.Liquidations, res.Summary.FinalValue)
	}
	r.log.Infof("[Pipeline] simulated %d days: A=%.2f B=%.2f (liquidations=%d, anomalies=%d)",
		req.Timeline.Len(), classic.Summary.FinalValue, hedged.Summary.FinalValue,
		hedged.Summary.Liquidations, hedged.Summary.Anomalies)

	return &Outcome{
		Timeline: req.Timeline,
		Config:   *req.Config,
		Policy:   policy.Name(),
		Classic:  classic,
		Hedged:   hedged,
	}, nil
}

func (r *Runner) analyze(out *Outcome) error {
	defer observe(StageAnalysis, time.Now())

	periods, err := out.Config.Periods()
	if err != nil {
		return err
	}
	recovery, err := out.Config.RecoveryWindow()
	if err != nil {
		return err
	}
	rep, err := analysis.Compare(out.Classic.Series, out.Hedged.Series, analysis.Options{
		TradingDaysPerYear: out.Config.TradingDaysPerYear,
		Rates:              out.Timeline.Rates(),
		Periods:            periods,
		Recovery:           recovery,
		Logger:             r.log,
	})
	if err != nil {
		return err
	}
	out.Analysis = rep
	return nil
}

// LoadTimeline builds the timeline from data.file when set, otherwise from
// the FMP API using the key in the configured environment variable.
func LoadTimeline(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) (*model.Timeline, error) {
	defer observe(StageData, time.Now())

	tl, stats, err := loadTimeline(ctx, cfg, log)
	if err != nil {
		monitoring.RecordError(string(StageData))
		return nil, stageErr(StageData, err)
	}
	if log != nil {
		log.Infof("[Pipeline] loaded %d trading days %s..%s (rows=%d dropped=%d rate_filled=%d)",
			tl.Len(), tl.Start().Format(model.DateLayout), tl.End().Format(model.DateLayout),
			stats.Rows, stats.Dropped, stats.RateFilled)
	}
	return tl, nil
}

// BuildTimeline prepares already-loaded rows under cfg's date window and
// default rate.
func BuildTimeline(cfg *config.Config, rows []data.Row) (*model.Timeline, error) {
	tl, _, err := prepare(cfg, rows)
	if err != nil {
		monitoring.RecordError(string(StageData))
		return nil, stageErr(StageData, err)
	}
	return tl, nil
}

func loadTimeline(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) (*model.Timeline, data.PrepareStats, error) {
	rows, err := FetchRows(ctx, cfg, log)
	if err != nil {
		return nil, data.PrepareStats{}, err
	}
	return prepare(cfg, rows)
}

func prepare(cfg *config.Config, rows []data.Row) (*model.Timeline, data.PrepareStats, error) {
	start, end, err := cfg.DateRange()
	if err != nil {
		return nil, data.PrepareStats{}, err
	}
	return data.Prepare(rows, data.PrepareOptions{
		DefaultRate: cfg.Rate(),
		Start:       start,
		End:         end,
	})
}

// FetchRows returns raw market rows from the configured source.
func FetchRows(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) ([]data.Row, error) {
	if cfg.Data.File != "" {
		return data.LoadCSV(cfg.Data.File)
	}

	start, end, err := cfg.DateRange()
	if err != nil {
		return nil, err
	}
	if start.IsZero() {
		return nil, errors.New("data.start_date is required when fetching from the API")
	}
	if end.IsZero() {
		end = time.Now().UTC().Truncate(24 * time.Hour)
	}
	apiKey := os.Getenv(cfg.Data.APIKeyEnvVar)
	client := newFMPClient(cfg, apiKey, log)
	rows, err := client.FetchMarket(ctx, cfg.Data.SymbolIndex, cfg.Data.SymbolVolatility, start, end)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no overlapping %s/%s history", cfg.Data.SymbolIndex, cfg.Data.SymbolVolatility)
	}
	return rows, nil
}

// newFMPClient applies data.cache_ttl to the responses the client caches.
func newFMPClient(cfg *config.Config, apiKey string, log *zap.SugaredLogger) *data.FMPClient {
	client := data.NewFMPClient(apiKey, cfg.Data.BaseURL, log)
	client.CacheTTL = cfg.CacheTTL()
	return client
}

func memoKey(tl *model.Timeline, cfg *config.Config) string {
	// Output and data-source settings do not affect results.
	c := *cfg
	c.Output = config.OutputConfig{}
	c.Data = config.DataConfig{}
	raw, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return data.GenerateCacheKey(tl.Fingerprint(), string(raw))
}

func observe(stage Stage, start time.Time) {
	monitoring.ObserveStage(string(stage), time.Since(start))
}
