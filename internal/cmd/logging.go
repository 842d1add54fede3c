package cmd

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

var logger *slog.Logger

// initLogging configures the package logger from the bound viper keys.
func initLogging() {
	logger = newLogger(os.Stderr,
		viper.GetString("log-level"),
		viper.GetBool("verbose"),
		viper.GetString("log-file"),
	)
	slog.SetDefault(logger)
}

// newLogger builds a text logger. When logFile is set, output is duplicated
// into a size-rotated file.
func newLogger(console io.Writer, levelName string, verbose bool, logFile string) *slog.Logger {
	level := parseLogLevel(levelName)
	if verbose {
		level = slog.LevelDebug
	}

	out := console
	if logFile != "" {
		out = io.MultiWriter(console, &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		})
	}

	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
}

// parseLogLevel maps DEBUG, INFO, WARN or ERROR to a level, falling back to INFO.
func parseLogLevel(name string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(strings.TrimSpace(name)))); err != nil {
		return slog.LevelInfo
	}
	return level
}
