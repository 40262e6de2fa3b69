package handler

import (
	"context"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const writeTimeout = 5 * time.Second

// Events upgrades to a websocket and forwards every completion signal as a
// bare text frame. Browsers from other origins are rejected by Accept.
func (h *Handler) Events(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	ch, unsubscribe := h.bus.Subscribe()
	defer unsubscribe()

	h.logger.Debug("Events listener connected", zap.Int("listeners", h.bus.SubscriberCount()))

	ctx := conn.CloseRead(c.Request.Context())
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(writeCtx, websocket.MessageText, []byte(ev.Signal))
			cancel()
			if err != nil {
				h.logger.Debug("Events listener gone", zap.Error(err))
				return
			}
		}
	}
}
