package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cfd-hedge-backtest/internal/api/models"
	"cfd-hedge-backtest/internal/config"
)

// PolicyHandler handles hedging-policy requests
type PolicyHandler struct {
	defaults *config.Config
}

// NewPolicyHandler creates a new policy handler; defaults supply the
// advertised parameter defaults.
func NewPolicyHandler(defaults *config.Config) *PolicyHandler {
	if defaults == nil {
		defaults = config.Default()
	}
	return &PolicyHandler{defaults: defaults}
}

// ListPolicies handles GET /api/v1/policies
func (h *PolicyHandler) ListPolicies(c *gin.Context) {
	hs := h.defaults.HedgingStrategy
	common := []models.ParameterInfo{
		{
			Name:        "hedging_strategy.vix_threshold",
			Type:        "float",
			Description: "Volatility index level above which the portfolio is hedged",
			Default:     hs.VIXThreshold,
		},
		{
			Name:        "hedging_strategy.hedge_ratio",
			Type:        "float",
			Description: "Fraction of equity notional to short while hedged",
			Default:     hs.HedgeRatio,
		},
	}

	policies := []models.PolicyInfo{
		{
			Name:        "threshold",
			Description: "Shorts hedge_ratio of equity in index CFDs while volatility is above the threshold and holds no position otherwise.",
			Parameters:  common,
		},
		{
			Name:        "hysteresis",
			Description: "Enters like threshold but stays hedged until volatility falls to the exit threshold or below.",
			Parameters: append(append([]models.ParameterInfo(nil), common...),
				models.ParameterInfo{
					Name:        "hedging_strategy.hysteresis.enabled",
					Type:        "bool",
					Description: "Select the hysteresis policy",
					Default:     false,
				},
				models.ParameterInfo{
					Name:        "hedging_strategy.hysteresis.exit_threshold",
					Type:        "float",
					Description: "Volatility level at or below which an open hedge is closed",
					Default:     hs.Hysteresis.ExitThreshold,
				},
			),
		},
	}

	c.JSON(http.StatusOK, gin.H{"policies": policies})
}

// Defaults handles GET /api/v1/config/defaults
func (h *PolicyHandler) Defaults(c *gin.Context) {
	c.JSON(http.StatusOK, h.defaults)
}
