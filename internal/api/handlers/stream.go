package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"cfd-hedge-backtest/internal/api/models"
	"cfd-hedge-backtest/internal/backtest"
	"cfd-hedge-backtest/internal/pipeline"
)

const (
	streamWriteWait = 10 * time.Second
	streamReadWait  = 30 * time.Second
)

// Stream handles GET /api/v1/simulate/stream (websocket).
//
// The client sends one SimulateRequest as JSON. The server replies with a
// "day" message per hedged ledger row, then a single "result" message (or
// "error") and closes the connection.
func (h *SimulateHandler) Stream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		h.log.Warnf("[Stream] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	s := &streamWriter{conn: conn}

	_ = conn.SetReadDeadline(time.Now().Add(streamReadWait))
	var req models.SimulateRequest
	if err := conn.ReadJSON(&req); err != nil {
		s.sendError(models.ErrorDetail{Code: "INVALID_REQUEST", Message: err.Error()})
		return
	}

	cfg, err := h.resolveConfig(req.Preset, req.Config)
	if err != nil {
		s.sendError(models.ErrorDetail{Code: "INVALID_CONFIG", Message: err.Error()})
		return
	}

	ctx := c.Request.Context()
	tl, err := h.timeline(ctx, cfg, req.MarketData)
	if err != nil {
		_, detail := errorDetail(err)
		s.sendError(detail)
		return
	}

	// OnDay is only ever called from the hedged simulator's goroutine, and
	// the final message is written after Run returns, so writes never overlap.
	out, err := h.runner.Run(ctx, pipeline.Request{
		Timeline: tl,
		Config:   cfg,
		OnDay: func(row backtest.LedgerRow) {
			day := models.NewLedgerRow(row)
			s.send(models.StreamMessage{Type: "day", Day: &day})
		},
	})
	if err != nil {
		_, detail := errorDetail(err)
		s.sendError(detail)
		return
	}

	id := h.store(out)
	resp := buildResponse(id, out, req.Options)
	s.send(models.StreamMessage{Type: "result", Result: &resp})
	if s.err != nil {
		h.log.Warnf("[Stream] client went away during run %s: %v", id, s.err)
		return
	}

	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// streamWriter stops writing after the first failed write.
type streamWriter struct {
	conn *websocket.Conn
	err  error
}

func (s *streamWriter) send(msg models.StreamMessage) {
	if s.err != nil {
		return
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	s.err = s.conn.WriteJSON(msg)
}

func (s *streamWriter) sendError(detail models.ErrorDetail) {
	s.send(models.StreamMessage{Type: "error", Error: &detail})
}
