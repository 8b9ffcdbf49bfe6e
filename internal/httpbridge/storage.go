package httpbridge

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// handleStorageGet serves an Output Blob by its content key, or 404 if
// it was never written (or the key is simply wrong).
func (b *Bridge) handleStorageGet(c echo.Context) error {
	key := c.Param("key")

	data, blob, err := b.blobs.Get(key)
	if err != nil {
		return c.NoContent(http.StatusNotFound)
	}

	return c.Blob(http.StatusOK, blob.MimeType, data)
}
