package observability

import (
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"dwhload/pkg/errors"
)

// LoggerConfig contains logger configuration
type LoggerConfig struct {
	// Level is one of debug, info, warn, error. Empty means info, or debug
	// when Verbose is set.
	Level   string
	Verbose bool
	// JSON selects the production JSON encoder; otherwise a console encoder
	// is used.
	JSON    bool
	Output  io.Writer
	Service string
	Version string
}

// NewLogger builds a zap logger from config.
func NewLogger(config LoggerConfig) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if config.Verbose {
		level = zapcore.DebugLevel
	}
	if config.Level != "" {
		parsed, err := zapcore.ParseLevel(strings.ToLower(config.Level))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "Invalid log level").
				WithContext("level", config.Level)
		}
		level = parsed
	}

	var encoderConfig zapcore.EncoderConfig
	var encoder zapcore.Encoder
	if config.JSON {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	output := config.Output
	if output == nil {
		output = os.Stderr
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(output), zap.NewAtomicLevelAt(level))
	opts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)}

	logger := zap.New(core, opts...)
	if config.Service != "" {
		logger = logger.With(zap.String("service", config.Service))
	}
	if config.Version != "" {
		logger = logger.With(zap.String("version", config.Version))
	}
	return logger, nil
}

// ErrorFields flattens an error into log fields. AppErrors contribute their
// code, severity and context.
func ErrorFields(err error) []zap.Field {
	if err == nil {
		return nil
	}
	fields := []zap.Field{zap.Error(err)}

	if appErr, ok := errors.AsAppError(err); ok {
		fields = append(fields,
			zap.String("code", string(appErr.Code)),
			zap.String("severity", string(appErr.Severity)))
		for k, v := range appErr.Context {
			fields = append(fields, zap.Any(k, v))
		}
	}
	return fields
}
