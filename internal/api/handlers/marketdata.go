package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cfd-hedge-backtest/internal/api/models"
	"cfd-hedge-backtest/internal/config"
	"cfd-hedge-backtest/internal/model"
	"cfd-hedge-backtest/internal/pipeline"
)

// MarketDataHandler previews the prepared market timeline from the
// server's configured source.
type MarketDataHandler struct {
	defaults *config.Config
	log      *zap.SugaredLogger
}

func NewMarketDataHandler(defaults *config.Config, log *zap.SugaredLogger) *MarketDataHandler {
	if defaults == nil {
		defaults = config.Default()
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &MarketDataHandler{defaults: defaults, log: log}
}

// GetMarketData handles GET /api/v1/market-data?start_date=&end_date=&limit=
func (h *MarketDataHandler) GetMarketData(c *gin.Context) {
	cfg := *h.defaults
	if v := c.Query("start_date"); v != "" {
		cfg.Data.StartDate = v
	}
	if v := c.Query("end_date"); v != "" {
		cfg.Data.EndDate = v
	}
	if _, _, err := cfg.DateRange(); err != nil {
		badRequest(c, "INVALID_PARAM", err)
		return
	}

	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			badRequest(c, "INVALID_PARAM", fmt.Errorf("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	tl, err := pipeline.LoadTimeline(c.Request.Context(), &cfg, h.log)
	if err != nil {
		respondError(c, err)
		return
	}

	source := "fmp"
	if cfg.Data.File != "" {
		source = "file"
	}
	resp := models.MarketDataResponse{
		Source:      source,
		Window:      models.TimeWindow{Start: tl.Start(), End: tl.End()},
		Days:        tl.Len(),
		Fingerprint: tl.Fingerprint(),
	}

	days := tl.Days()
	if limit > 0 && limit < len(days) {
		days = days[:limit]
	}
	resp.Rows = make([]models.MarketDay, len(days))
	for i, d := range days {
		row := models.MarketDay{
			Date:       d.Date.Format(model.DateLayout),
			Price:      d.Price,
			Volatility: d.Volatility,
			Rate:       d.Rate,
		}
		if model.Finite(d.Return) {
			r := d.Return
			row.Return = &r
		}
		resp.Rows[i] = row
	}

	c.JSON(http.StatusOK, resp)
}
