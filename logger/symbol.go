package logger

import "go.uber.org/zap"

// Lifecycle symbols used as structured fields, not inlined into messages.
//
// Usage:
//
//	// Instead of:
//	logger.Infow(logger.SymQueue + " job enqueued", "job_id", id)
//
//	// Use:
//	logger.QueueInfow("job enqueued", "job_id", id)
const (
	SymQueue = "⧗" // queue / worker pool lifecycle
	SymOpen  = "✿" // graceful startup
	SymClose = "❀" // graceful shutdown
	SymDream = "✺" // dream controller activity
)

// QueueInfow logs an info message tagged with the queue/pool symbol.
func QueueInfow(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		fields := append([]interface{}{FieldSymbol, SymQueue}, keysAndValues...)
		Logger.Infow(msg, fields...)
	}
}

// QueueWarnw logs a warning tagged with the queue/pool symbol.
func QueueWarnw(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		fields := append([]interface{}{FieldSymbol, SymQueue}, keysAndValues...)
		Logger.Warnw(msg, fields...)
	}
}

// OpenInfow logs a startup-path info message.
func OpenInfow(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		fields := append([]interface{}{FieldSymbol, SymOpen}, keysAndValues...)
		Logger.Infow(msg, fields...)
	}
}

// CloseInfow logs a shutdown-path info message.
func CloseInfow(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		fields := append([]interface{}{FieldSymbol, SymClose}, keysAndValues...)
		Logger.Infow(msg, fields...)
	}
}

// DreamInfow logs a dream-controller info message.
func DreamInfow(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		fields := append([]interface{}{FieldSymbol, SymDream}, keysAndValues...)
		Logger.Infow(msg, fields...)
	}
}

// WithSymbol returns a logger decorated with the given symbol field.
func WithSymbol(symbol string) *zap.SugaredLogger {
	return Logger.With(FieldSymbol, symbol)
}

// SymbolInfow logs with an arbitrary symbol, for call sites that pick one dynamically.
func SymbolInfow(symbol, msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		fields := append([]interface{}{FieldSymbol, symbol}, keysAndValues...)
		Logger.Infow(msg, fields...)
	}
}
