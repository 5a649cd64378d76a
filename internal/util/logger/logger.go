package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Log = zap.NewNop()

func Init(level string) error {
	logLevel := zapcore.DebugLevel
	if err := logLevel.UnmarshalText([]byte(level)); err != nil {
		return err
	}

	config := zap.NewDevelopmentConfig()
	config.Level = zap.NewAtomicLevelAt(logLevel)
	config.OutputPaths = []string{"stdout"}
	config.ErrorOutputPaths = []string{"stderr"}

	var err error
	Log, err = config.Build()
	if err != nil {
		return err
	}
	zap.ReplaceGlobals(Log)

	return nil
}

// NewActions builds the audit logger for user actions: sign-ups, sign-ins,
// balance queries and transfers. An empty path logs to stdout.
func NewActions(path string) (*zap.Logger, error) {
	if path == "" {
		path = "stdout"
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	config.OutputPaths = []string{path}
	config.ErrorOutputPaths = []string{"stderr"}
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.DisableCaller = true
	config.DisableStacktrace = true
	config.Sampling = nil

	actions, err := config.Build()
	if err != nil {
		return nil, err
	}
	return actions.Named("actions"), nil
}

func Sync() error {
	if Log != nil {
		return Log.Sync()
	}
	return nil
}
