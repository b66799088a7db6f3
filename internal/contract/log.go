package contract

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultLogLevel is the level used until SetLogLevel is called.
const DefaultLogLevel = "warn"

var (
	logLevel = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	logger   = newLogger()
)

func newLogger() *zap.Logger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	encCfg.CallerKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), logLevel)
	return zap.New(core)
}

// SetLogLevel changes the level of the process-wide logger.
func SetLogLevel(level string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return err
	}
	logLevel.SetLevel(lvl)
	return nil
}

// Logger returns the process-wide logger.
func Logger() *zap.Logger {
	return logger
}

// LogFatal logs an error and exits the program.
func LogFatal(msg string, err error) {
	logger.Error(msg, zap.Error(err))
	_ = logger.Sync()
	os.Exit(1)
}

// LogWarn logs a warning message to stderr.
func LogWarn(msg string, err error) {
	if err == nil {
		logger.Warn(msg)
		return
	}
	logger.Warn(msg, zap.Error(err))
}

// LogInfo logs an informational message to stderr.
func LogInfo(msg string, fields ...zap.Field) {
	logger.Info(msg, fields...)
}
