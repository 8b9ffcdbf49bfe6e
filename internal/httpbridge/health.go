package httpbridge

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// handleHealthz replies with a snapshot built from the same sources as the
// WS hub's system:status push (mode, vram, storage) plus a "status" field.
// Its queueState carries only the pending and running counts, without the
// type field and per-job list of the WS queue:state message.
func (b *Bridge) handleHealthz(c echo.Context) error {
	stats := b.pool.Registry().Stats()
	snapshot := b.pool.QueueSnapshot()

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": "ok",
		"mode":   b.pool.CurrentMode(),
		"vram": map[string]interface{}{
			"usedBytes":      stats.UsedBytes,
			"availableBytes": stats.AvailableBytes,
			"totalBytes":     stats.TotalBytes,
		},
		"storage": map[string]interface{}{
			"loadedModels": stats.LoadedModels,
		},
		"queueState": map[string]interface{}{
			"pending": len(snapshot),
			"running": b.pool.Running(),
		},
	})
}
