package main

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	slogctx "github.com/veqryn/slog-context"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	configBaseName = "cratemap"
	configFileName = configBaseName + ".yaml"
	envPrefix      = "CRATEMAP"

	formatKey       = "format"
	outputKey       = "output"
	nameKey         = "name"
	includeTestsKey = "include_tests"

	logLevelKey      = "log.level"
	logFileKey       = "log.file"
	logMaxSizeKey    = "log.max_size"
	logMaxBackupsKey = "log.max_backups"
	logMaxAgeKey     = "log.max_age"
	logCompressKey   = "log.compress"

	formatHTML = "html"
	formatSVG  = "svg"
	formatTOON = "toon"

	stdoutPath = "-"

	defaultFormat       = formatHTML
	defaultName         = "Diagram"
	defaultLogLevel     = "info"
	defaultLogMaxSize   = 10
	defaultLogMaxBackup = 3
	defaultLogMaxAge    = 28
)

var defaultOutputs = map[string]string{
	formatHTML: "diagram.html",
	formatSVG:  "diagram.svg",
	formatTOON: stdoutPath,
}

// newConfig returns a viper instance with defaults and environment lookup.
// Each invocation gets its own instance so runs do not share state.
func newConfig() *viper.Viper {
	v := viper.New()
	v.SetConfigName(configBaseName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	for key, value := range configDefaults() {
		v.SetDefault(key, value)
	}
	return v
}

func configDefaults() map[string]any {
	return map[string]any{
		formatKey:        defaultFormat,
		outputKey:        "",
		nameKey:          defaultName,
		includeTestsKey:  false,
		logLevelKey:      defaultLogLevel,
		logFileKey:       "",
		logMaxSizeKey:    defaultLogMaxSize,
		logMaxBackupsKey: defaultLogMaxBackup,
		logMaxAgeKey:     defaultLogMaxAge,
		logCompressKey:   true,
	}
}

// readConfig loads the config file. An explicit path must exist; the default
// cratemap.yaml in the working directory is optional.
func readConfig(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
	}

	err := v.ReadInConfig()
	if err == nil {
		return nil
	}

	var notFound viper.ConfigFileNotFoundError
	if path == "" && errors.As(err, &notFound) {
		return nil
	}
	return errors.Errorf("reading config: %w", err)
}

// bindFlag wires a flag to a viper key so config and env values feed it.
func bindFlag(v *viper.Viper, flag *pflag.Flag, key string) {
	if flag == nil {
		cobra.CheckErr(errors.Errorf("flag for config key %q not found", key))
		return
	}
	cobra.CheckErr(v.BindPFlag(key, flag))
}

func parseSlogLevel(value string, defaultLevel slog.Level) slog.Level {
	level := strings.ToLower(strings.TrimSpace(value))
	if level == "" {
		return defaultLevel
	}

	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}

	// Allow numeric slog levels as well (e.g. -4 for debug).
	if n, err := strconv.Atoi(level); err == nil {
		return slog.Level(n)
	}

	return defaultLevel
}

// newLogger builds the logger for one run. Logs go to stderr through tint,
// or to a rotating file when log.file is set. The returned closer releases
// the file.
func newLogger(v *viper.Viper, stderr io.Writer, verbose bool) (*slog.Logger, io.Closer) {
	level := parseSlogLevel(v.GetString(logLevelKey), slog.LevelInfo)
	if verbose {
		level = slog.LevelDebug
	}

	var (
		handler slog.Handler
		closer  io.Closer = nopCloser{}
	)

	if path := strings.TrimSpace(v.GetString(logFileKey)); path != "" {
		logWriter := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    v.GetInt(logMaxSizeKey),
			MaxBackups: v.GetInt(logMaxBackupsKey),
			MaxAge:     v.GetInt(logMaxAgeKey),
			Compress:   v.GetBool(logCompressKey),
		}
		handler = slog.NewTextHandler(logWriter, &slog.HandlerOptions{
			AddSource: true,
			Level:     level,
		})
		closer = logWriter
	} else {
		handler = tint.NewHandler(stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
			NoColor:    !isTTY(stderr),
		})
	}

	return slog.New(slogctx.NewHandler(handler, nil)), closer
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
