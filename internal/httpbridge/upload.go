package httpbridge

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
)

// handleUpload reads a single multipart file field ("file") and stores
// it in the file-ref store, returning the same {fileRef} shape the WS
// storage:put path acks with.
func (b *Bridge) handleUpload(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("BadRequest", "multipart field \"file\" is required"))
	}

	src, err := fileHeader.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("BadRequest", "failed to open uploaded file"))
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("BadRequest", "failed to read uploaded file"))
	}

	ref, err := b.fileRefs.Put(data, fileHeader.Header.Get("Content-Type"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorBody("WorkerFailure", "failed to store upload"))
	}

	return c.JSON(http.StatusOK, map[string]string{"fileRef": ref})
}

func errorBody(kind, message string) map[string]string {
	return map[string]string{"kind": kind, "error": message}
}
