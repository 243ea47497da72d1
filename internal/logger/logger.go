package logger

import (
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger writes structured JSON records tagged with service, hostname, action and request id.
type Logger struct {
	service  string
	hostname string
	zl       *zap.Logger
}

// New creates a JSON logger writing to stdout at debug level.
func New(service string) *Logger {
	return NewWithCore(service, jsonCore(os.Stdout, zapcore.DebugLevel))
}

// NewStderr writes records at level and above to stderr, leaving stdout to the terminal views.
func NewStderr(service string, level zapcore.Level) *Logger {
	return NewWithCore(service, jsonCore(os.Stderr, level))
}

func jsonCore(w zapcore.WriteSyncer, level zapcore.Level) zapcore.Core {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.RFC3339TimeEncoder
	encoderCfg.MessageKey = "message"

	return zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.Lock(w), level)
}

// NewWithCore builds a logger on top of an arbitrary zap core.
func NewWithCore(service string, core zapcore.Core) *Logger {
	hostname, _ := os.Hostname()

	return &Logger{
		service:  service,
		hostname: hostname,
		zl:       zap.New(core),
	}
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{service: "nop", zl: zap.NewNop()}
}

// GenerateRequestID returns a fresh id used to correlate log lines.
func GenerateRequestID() string {
	return uuid.NewString()
}

func (l *Logger) Info(action, message, requestID string, fields map[string]interface{}) {
	l.zl.Info(message, l.fields(action, requestID, fields)...)
}

func (l *Logger) Debug(action, message, requestID string, fields map[string]interface{}) {
	l.zl.Debug(message, l.fields(action, requestID, fields)...)
}

func (l *Logger) Warn(action, message, requestID string, fields map[string]interface{}) {
	l.zl.Warn(message, l.fields(action, requestID, fields)...)
}

func (l *Logger) Error(action, message, requestID string, err error, fields map[string]interface{}) {
	zf := l.fields(action, requestID, fields)
	if err != nil {
		zf = append(zf, zap.Error(err), zap.StackSkip("stack", 1))
	}
	l.zl.Error(message, zf...)
}

// Sync flushes buffered records.
func (l *Logger) Sync() error {
	return l.zl.Sync()
}

func (l *Logger) fields(action, requestID string, extra map[string]interface{}) []zap.Field {
	zf := make([]zap.Field, 0, 4+len(extra))
	zf = append(zf,
		zap.String("service", l.service),
		zap.String("hostname", l.hostname),
		zap.String("action", action),
		zap.String("request_id", requestID),
	)
	for k, v := range extra {
		zf = append(zf, zap.Any(k, v))
	}
	return zf
}
