package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wakala/settlement/internal/config"
)

// New builds the application logger and installs it as the zap global.
// Production uses JSON output; anything else the development console.
func New(cfg *config.Config) (*zap.Logger, error) {
	log, err := zap.NewDevelopment()
	if err != nil {
		return nil, err
	}

	if cfg.AppEnv == "production" {
		c := zap.NewProductionConfig()
		c.EncoderConfig.TimeKey = "timestamp"
		c.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		c.EncoderConfig.StacktraceKey = "stacktrace"
		c.EncoderConfig.LevelKey = "severity"
		c.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		c.EncoderConfig.CallerKey = "caller"
		c.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
		c.Encoding = "json"
		c.OutputPaths = []string{"stdout"}
		c.ErrorOutputPaths = []string{"stderr"}

		log, err = c.Build()
		if err != nil {
			return nil, err
		}
	}

	log = log.With(
		zap.String("env", cfg.AppEnv),
		zap.String("service_name", cfg.AppName),
	)
	zap.ReplaceGlobals(log)
	return log, nil
}
