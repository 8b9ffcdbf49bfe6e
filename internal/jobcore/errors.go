package jobcore

// Kind enumerates the error taxonomy surfaced over the WS protocol and
// the HTTP bridge's legacy adapters.
type Kind string

const (
	KindBadRequest    Kind = "BadRequest"
	KindRefNotFound   Kind = "RefNotFound"
	KindQueueFull     Kind = "QueueFull"
	KindDreamBusy     Kind = "DreamBusy"
	KindModeNotFound  Kind = "ModeNotFound"
	KindModelLoadFail Kind = "ModelLoadFailed"
	KindWorkerFailure Kind = "WorkerFailure"
	KindCanceled      Kind = "Canceled"
	KindShutdown      Kind = "Shutdown"
	KindTimeout       Kind = "Timeout"
	KindUnknownType   Kind = "UnknownType"
)

// Error is the structured error attached to a failed or canceled Job's
// Result, and also used as the payload of a WS error frame.
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return string(e.Kind) + ": " + e.Message
}

// NewError builds an Error of the given kind.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	je, ok := err.(*Error)
	return ok && je.Kind == kind
}
