package httpbridge

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// handleAdminModesReload is the explicit admin operation spec §3
// requires before a Mode Spec document edit takes effect.
func (b *Bridge) handleAdminModesReload(c echo.Context) error {
	if err := b.modes.Reload(); err != nil {
		return c.JSON(http.StatusInternalServerError, errorBody("BadRequest", err.Error()))
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "reloaded"})
}

// handleAdminQueue exposes a non-WS read path over the same snapshot
// queue:state pushes, for operational debugging and the CLI's
// `imagegend queue ls`.
func (b *Bridge) handleAdminQueue(c echo.Context) error {
	snapshot := b.pool.QueueSnapshot()
	jobs := make([]map[string]interface{}, 0, len(snapshot))
	for _, d := range snapshot {
		jobs = append(jobs, map[string]interface{}{
			"id":       d.ID,
			"jobType":  d.JobType,
			"priority": d.Priority.String(),
			"source":   d.Source,
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"pending": len(snapshot),
		"running": b.pool.Running(),
		"jobs":    jobs,
	})
}
