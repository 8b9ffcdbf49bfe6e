package httpbridge

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/dreamforge/imagegen/internal/jobcore"
)

// legacyDeadline bounds how long a synchronous adapter will block for a
// terminal event before giving up and replying with a timeout, mirroring
// the WS client's own 120s default generate deadline (spec §5).
const legacyDeadline = 120 * time.Second

// handleLegacyGenerate is the feature-parallel synchronous adapter for
// job:submit{jobType:"generate"}: synthesize a Job, submit it, and block
// on the pool's callback until it reaches a terminal state.
func (b *Bridge) handleLegacyGenerate(c echo.Context) error {
	var p jobcore.GenerateParams
	if err := c.Bind(&p); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("BadRequest", "malformed generate request"))
	}

	if p.InitImageRef != "" {
		if _, ok := b.fileRefs.Take(p.InitImageRef); !ok {
			return c.JSON(http.StatusBadRequest, errorBody("RefNotFound", "init_image_ref expired or unknown"))
		}
	}

	if verr := jobcore.ValidateGenerateParams(&p); verr != nil {
		return c.JSON(http.StatusBadRequest, errorBody(string(verr.Kind), verr.Message))
	}

	return b.submitAndWait(c, jobcore.TypeGenerate, &p, p.InitImageRef)
}

// handleLegacySuperres is the feature-parallel synchronous adapter for
// job:submit{jobType:"sr"}.
func (b *Bridge) handleLegacySuperres(c echo.Context) error {
	var p jobcore.SRParams
	if err := c.Bind(&p); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("BadRequest", "malformed superres request"))
	}

	if p.InitImageRef != "" {
		if _, ok := b.fileRefs.Take(p.InitImageRef); !ok {
			return c.JSON(http.StatusBadRequest, errorBody("RefNotFound", "init_image_ref expired or unknown"))
		}
	}

	if verr := jobcore.ValidateSRParams(&p); verr != nil {
		return c.JSON(http.StatusBadRequest, errorBody(string(verr.Kind), verr.Message))
	}

	return b.submitAndWait(c, jobcore.TypeSR, &p, p.InitImageRef)
}

// submitAndWait builds and submits a Job, then blocks on its terminal
// event (or legacyDeadline, whichever comes first) before replying. It
// shares no state with any WS session — the subscription here is local
// to this request.
func (b *Bridge) submitAndWait(c echo.Context, jobType jobcore.Type, params interface{}, initImageRef string) error {
	job := jobcore.New("", jobType, jobcore.PriorityNORMAL, params, initImageRef)

	if err := b.pool.Submit(job); err != nil {
		je := asJobError(err)
		return c.JSON(statusFor(je.Kind), errorBody(string(je.Kind), je.Message))
	}

	var once sync.Once
	done := make(chan *jobcore.Job, 1)
	b.pool.Subscribe(job.ID, func(_ jobcore.ProgressEvent, j *jobcore.Job) {
		if !j.IsTerminal() {
			return
		}
		once.Do(func() { done <- j })
	})

	select {
	case finished := <-done:
		return b.writeTerminal(c, finished)
	case <-time.After(legacyDeadline):
		return c.JSON(http.StatusGatewayTimeout, errorBody("Timeout", "job did not complete before the request deadline"))
	}
}

func (b *Bridge) writeTerminal(c echo.Context, job *jobcore.Job) error {
	result := job.Result()
	if result == nil {
		return c.JSON(http.StatusInternalServerError, errorBody("WorkerFailure", "job reached terminal state with no result"))
	}

	switch job.State() {
	case jobcore.StateDone:
		return c.JSON(http.StatusOK, map[string]interface{}{
			"jobId":   job.ID,
			"outputs": []outputDescriptor{{Key: result.Key, URL: result.URL}},
			"meta":    result.Meta,
		})
	case jobcore.StateCanceled:
		return c.JSON(http.StatusConflict, errorBody("Canceled", "job was canceled"))
	default:
		if result.Err != nil {
			return c.JSON(statusFor(result.Err.Kind), errorBody(string(result.Err.Kind), result.Err.Message))
		}
		return c.JSON(http.StatusInternalServerError, errorBody("WorkerFailure", "job failed"))
	}
}

// outputDescriptor mirrors the WS job:complete outputs entry shape.
type outputDescriptor struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

func statusFor(kind jobcore.Kind) int {
	switch kind {
	case jobcore.KindBadRequest, jobcore.KindUnknownType:
		return http.StatusBadRequest
	case jobcore.KindRefNotFound, jobcore.KindModeNotFound:
		return http.StatusNotFound
	case jobcore.KindQueueFull, jobcore.KindDreamBusy:
		return http.StatusTooManyRequests
	case jobcore.KindTimeout:
		return http.StatusGatewayTimeout
	case jobcore.KindCanceled:
		return http.StatusConflict
	case jobcore.KindShutdown:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func asJobError(err error) *jobcore.Error {
	if je, ok := err.(*jobcore.Error); ok {
		return je
	}
	return jobcore.NewError(jobcore.KindWorkerFailure, err.Error())
}
