package log

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"vlogclip/internal/appdirs"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Logger *zap.Logger

const logFileName = "vlogclip.log"

var (
	appDirsResolver = appdirs.Resolve
	nopOnce         sync.Once
	nopLogger       *zap.Logger
)

// InitLogger writes JSON at debug level to the log file and console output at
// info level (or the level named by VLOGCLIP_LOG_LEVEL) to stdout.
func InitLogger() {
	logDir, err := ResolveLogDir()
	if err != nil {
		panic("cannot resolve log dir: " + err.Error())
	}

	if err = os.MkdirAll(logDir, 0o755); err != nil {
		panic("cannot create log dir: " + err.Error())
	}

	logFilePath := filepath.Join(logDir, logFileName)
	file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		panic("cannot open log file: " + err.Error())
	}

	fileSyncer := zapcore.AddSync(file)
	consoleSyncer := zapcore.AddSync(os.Stdout)

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), fileSyncer, zap.DebugLevel),
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), consoleSyncer, consoleLevel()),
	)

	Logger = zap.New(core, zap.AddCaller())
}

func consoleLevel() zapcore.Level {
	level := zap.InfoLevel
	if raw := strings.TrimSpace(os.Getenv("VLOGCLIP_LOG_LEVEL")); raw != "" {
		if err := level.UnmarshalText([]byte(strings.ToLower(raw))); err != nil {
			return zap.InfoLevel
		}
	}
	return level
}

func ResolveLogDir() (string, error) {
	dirs, err := appDirsResolver()
	if err != nil {
		return "", err
	}

	logDir := strings.TrimSpace(dirs.LogDir)
	if logDir == "" {
		return ".", nil
	}

	return logDir, nil
}

func ResolveLogFilePath() (string, error) {
	logDir, err := ResolveLogDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(logDir, logFileName), nil
}

// GetLogger never returns nil; before InitLogger it hands out a no-op logger.
func GetLogger() *zap.Logger {
	if Logger != nil {
		return Logger
	}
	nopOnce.Do(func() {
		nopLogger = zap.NewNop()
	})
	return nopLogger
}
