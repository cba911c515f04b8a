package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileOptions configures the optional rotated log file.
type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		MessageKey: "step",

		LevelKey:    "level",
		EncodeLevel: zapcore.LowercaseLevelEncoder,

		TimeKey:    "time",
		EncodeTime: zapcore.RFC3339TimeEncoder,

		CallerKey:    "caller",
		EncodeCaller: zapcore.ShortCallerEncoder,

		EncodeDuration: zapcore.StringDurationEncoder,
	}
}

// LevelFor maps the debug switch to a zap level.
func LevelFor(debug bool) zapcore.Level {
	if debug {
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}

// New builds the application logger. Console output goes to stdout; when file
// options carry a path the same entries are also written as JSON into a
// size-rotated file.
func New(json bool, debug bool, file *FileOptions) (*zap.Logger, error) {
	return NewWithLevel(json, zap.NewAtomicLevelAt(LevelFor(debug)), file)
}

// NewWithLevel is New with a level the caller can change at runtime.
func NewWithLevel(json bool, atomic zap.AtomicLevel, file *FileOptions) (*zap.Logger, error) {
	var encoder zapcore.Encoder
	if json {
		encoder = zapcore.NewJSONEncoder(encoderConfig())
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderConfig())
	}

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), atomic),
	}

	if file != nil && file.Path != "" {
		rotator := &lumberjack.Logger{
			Filename:   file.Path,
			MaxSize:    withDefault(file.MaxSizeMB, 10),
			MaxBackups: withDefault(file.MaxBackups, 3),
			MaxAge:     withDefault(file.MaxAgeDays, 28),
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), zapcore.AddSync(rotator), atomic))
	}

	logger := zap.New(zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.ErrorOutput(zapcore.Lock(os.Stderr)),
	)

	return logger, nil
}

func withDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
