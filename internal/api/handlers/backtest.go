package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"cfd-hedge-backtest/internal/api/models"
	"cfd-hedge-backtest/internal/backtest"
	"cfd-hedge-backtest/internal/config"
	"cfd-hedge-backtest/internal/data"
	"cfd-hedge-backtest/internal/model"
	"cfd-hedge-backtest/internal/pipeline"
	"cfd-hedge-backtest/internal/report"
)

const (
	resultTTL        = time.Hour
	maxStoredResults = 256
)

// SimulateHandler runs simulations and serves stored results by ID.
type SimulateHandler struct {
	runner   *pipeline.Runner
	defaults *config.Config
	presets  *PresetHandler
	results  *data.Cache[*pipeline.Outcome]
	log      *zap.SugaredLogger
	upgrader websocket.Upgrader
}

// NewSimulateHandler creates a simulate handler. Request configs are merged
// onto defaults; presets may be nil to disable preset lookup.
func NewSimulateHandler(runner *pipeline.Runner, defaults *config.Config, presets *PresetHandler, log *zap.SugaredLogger) *SimulateHandler {
	if defaults == nil {
		defaults = config.Default()
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &SimulateHandler{
		runner:   runner,
		defaults: defaults,
		presets:  presets,
		results:  data.NewCache[*pipeline.Outcome](resultTTL, maxStoredResults),
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// origins are checked by the CORS middleware
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Close releases the result store.
func (h *SimulateHandler) Close() {
	h.results.Close()
}

// Simulate handles POST /api/v1/simulate
func (h *SimulateHandler) Simulate(c *gin.Context) {
	var req models.SimulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "INVALID_REQUEST", err)
		return
	}

	cfg, err := h.resolveConfig(req.Preset, req.Config)
	if err != nil {
		badRequest(c, "INVALID_CONFIG", err)
		return
	}

	ctx := c.Request.Context()
	tl, err := h.timeline(ctx, cfg, req.MarketData)
	if err != nil {
		respondError(c, err)
		return
	}

	out, err := h.runner.Run(ctx, pipeline.Request{Timeline: tl, Config: cfg})
	if err != nil {
		respondError(c, err)
		return
	}

	id := h.store(out)
	c.JSON(http.StatusOK, buildResponse(id, out, req.Options))
}

// GetLedger handles GET /api/v1/simulate/:id/ledger?format=json|csv
func (h *SimulateHandler) GetLedger(c *gin.Context) {
	id, out, ok := h.lookup(c)
	if !ok {
		return
	}
	if c.Query("format") == "csv" {
		writeAttachment(c, "text/csv", id+"_ledger.csv")
		if err := backtest.EncodeLedgerCSV(c.Writer, out.Hedged.Ledger); err != nil {
			h.log.Errorf("[API] ledger csv %s: %v", id, err)
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":     id,
		"ledger": models.NewLedger(out.Hedged.Ledger),
	})
}

// GetSeries handles GET /api/v1/simulate/:id/series?format=json|csv
func (h *SimulateHandler) GetSeries(c *gin.Context) {
	id, out, ok := h.lookup(c)
	if !ok {
		return
	}
	if c.Query("format") == "csv" {
		writeAttachment(c, "text/csv", id+"_values.csv")
		if err := report.EncodeValuesCSV(c.Writer, out.Analysis.Joined); err != nil {
			h.log.Errorf("[API] series csv %s: %v", id, err)
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":     id,
		"series": models.NewSeries(out.Analysis.Joined),
	})
}

// GetReport handles GET /api/v1/simulate/:id/report (XLSX workbook)
func (h *SimulateHandler) GetReport(c *gin.Context) {
	id, out, ok := h.lookup(c)
	if !ok {
		return
	}
	writeAttachment(c, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", id+".xlsx")
	if err := report.EncodeXLSX(c.Writer, out); err != nil {
		h.log.Errorf("[API] workbook %s: %v", id, err)
	}
}

// Compare handles POST /api/v1/simulate/compare. Every variation runs over
// the same market data; data settings in variations are ignored.
func (h *SimulateHandler) Compare(c *gin.Context) {
	var req models.CompareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "INVALID_REQUEST", err)
		return
	}

	base, err := h.resolveConfig(req.Preset, req.BaseConfig)
	if err != nil {
		badRequest(c, "INVALID_CONFIG", err)
		return
	}

	ctx := c.Request.Context()
	tl, err := h.timeline(ctx, base, req.MarketData)
	if err != nil {
		respondError(c, err)
		return
	}

	comparison := make([]models.ComparisonResult, 0, len(req.Variations))
	for _, variation := range req.Variations {
		result := models.ComparisonResult{Name: variation.Name}

		cfg := config.MergeOverride(*base, variation.Config)
		cfg.Data = base.Data
		cfg.ApplyDefaults()
		if err := cfg.Validate(); err != nil {
			result.Error = &models.ErrorDetail{Code: "INVALID_CONFIG", Message: err.Error()}
			comparison = append(comparison, result)
			continue
		}

		out, err := h.runner.Run(ctx, pipeline.Request{Timeline: tl, Config: &cfg})
		if err != nil {
			_, detail := errorDetail(err)
			result.Error = &detail
			comparison = append(comparison, result)
			continue
		}

		summary := models.NewSummary(out.Hedged.Summary)
		full := models.NewPeriodMetrics(out.Analysis.Full)
		result.Policy = out.Policy
		result.Summary = &summary
		result.Full = &full
		result.Verdicts = out.Analysis.Verdicts
		comparison = append(comparison, result)
	}

	c.JSON(http.StatusOK, models.CompareResponse{Comparison: comparison})
}

// resolveConfig layers defaults, the named preset and the request overrides,
// then validates the result.
func (h *SimulateHandler) resolveConfig(preset string, override config.Override) (*config.Config, error) {
	base := *h.defaults
	if preset != "" {
		if h.presets == nil {
			return nil, fmt.Errorf("presets are not available")
		}
		loaded, err := h.presets.Load(preset)
		if err != nil {
			return nil, err
		}
		base = config.Merge(base, *loaded)
	}

	cfg := config.MergeOverride(base, override)
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (h *SimulateHandler) timeline(ctx context.Context, cfg *config.Config, rows []models.MarketRow) (*model.Timeline, error) {
	if len(rows) > 0 {
		return pipeline.BuildTimeline(cfg, models.Rows(rows))
	}
	return pipeline.LoadTimeline(ctx, cfg, h.log)
}

func (h *SimulateHandler) store(out *pipeline.Outcome) string {
	id := uuid.NewString()
	h.results.Set(id, out)
	return id
}

func (h *SimulateHandler) lookup(c *gin.Context) (string, *pipeline.Outcome, bool) {
	id := c.Param("id")
	out, ok := h.results.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "RESULT_NOT_FOUND",
				Message: fmt.Sprintf("no stored result with id %q (results expire after %s)", id, resultTTL),
			},
		})
		return id, nil, false
	}
	return id, out, true
}

func writeAttachment(c *gin.Context, contentType, filename string) {
	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Status(http.StatusOK)
}

func buildResponse(id string, out *pipeline.Outcome, opts models.SimulateOptions) models.SimulateResponse {
	rep := out.Analysis
	resp := models.SimulateResponse{
		ID:     id,
		Status: "completed",
		Window: models.TimeWindow{Start: out.Timeline.Start(), End: out.Timeline.End()},
		Days:   out.Timeline.Len(),
		Policy: out.Policy,
		Summary: map[string]models.Summary{
			out.Classic.Model: models.NewSummary(out.Classic.Summary),
			out.Hedged.Model:  models.NewSummary(out.Hedged.Summary),
		},
		Skipped:  rep.Skipped,
		Verdicts: rep.Verdicts,
		Recovery: models.NewRecovery(rep.Recovery),
	}

	resp.Metrics = append(resp.Metrics, models.NewPeriodMetrics(rep.Full))
	for _, pm := range rep.Periods {
		resp.Metrics = append(resp.Metrics, models.NewPeriodMetrics(pm))
	}

	if opts.IncludeLedger {
		resp.Ledger = models.NewLedger(out.Hedged.Ledger)
	}
	if opts.IncludeSeries {
		resp.Series = models.NewSeries(rep.Joined)
	}
	return resp
}
