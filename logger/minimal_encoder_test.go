package logger

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// stripANSI removes ANSI color codes from a string for testing
func stripANSI(str string) string {
	ansiRegex := regexp.MustCompile(`\x1b\[[0-9;]*m`)
	return ansiRegex.ReplaceAllString(str, "")
}

func TestMinimalEncoderBasicFields(t *testing.T) {
	encoder := newMinimalEncoder()

	entry := zapcore.Entry{
		Level:      zapcore.InfoLevel,
		Time:       time.Now(),
		LoggerName: "pool",
		Message:    "job dequeued",
	}

	fields := []zapcore.Field{
		zap.String(FieldJobID, "j_123"),
		zap.Int("pending", 3),
		zap.Int("running", 1),
		zap.Int64(FieldDurationMS, 42),
	}

	buf, err := encoder.EncodeEntry(entry, fields)
	if err != nil {
		t.Fatalf("EncodeEntry() error: %v", err)
	}

	output := stripANSI(buf.String())

	for _, want := range []string{"j_123", "3", "1", "pending", "running", "42ms", "job dequeued"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %q, got: %s", want, output)
		}
	}
}

func TestMinimalEncoderWarnErrorLevels(t *testing.T) {
	encoder := newMinimalEncoder()

	for _, level := range []zapcore.Level{zapcore.WarnLevel, zapcore.ErrorLevel} {
		entry := zapcore.Entry{
			Level:      level,
			Time:       time.Now(),
			LoggerName: "ws",
			Message:    "session dropped",
		}

		buf, err := encoder.EncodeEntry(entry, nil)
		if err != nil {
			t.Fatalf("EncodeEntry() error: %v", err)
		}

		output := stripANSI(buf.String())
		if !strings.Contains(output, level.CapitalString()) {
			t.Errorf("expected level %s in output, got: %s", level.CapitalString(), output)
		}
	}
}

func TestColorizeSymbols(t *testing.T) {
	out := colorizeSymbols("queue "+SymQueue+" drained", getColorForTest())
	if !strings.Contains(out, SymQueue) {
		t.Errorf("expected symbol preserved in colorized output: %s", out)
	}
}

func getColorForTest() string {
	return colorID()
}

func TestAbbreviateName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"pool", "pool"},
		{"pool.worker", "p.worker"},
		{"ws.hub.broadcast", "w.hub.broadcast"},
	}

	for _, tt := range tests {
		if got := abbreviateName(tt.name); got != tt.want {
			t.Errorf("abbreviateName(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestClone(t *testing.T) {
	encoder := newMinimalEncoder()
	clone := encoder.Clone()
	if clone == nil {
		t.Fatal("Clone() returned nil")
	}
}
