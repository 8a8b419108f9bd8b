package log

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	// LogVerbosityInfo is the verbosity level for info logging.
	LogVerbosityInfo = 0
	// LogVerbosityDebug is the verbosity level for debug logging.
	LogVerbosityDebug = 2
	// LogVerbosityTrace is the verbosity level for trace logging.
	LogVerbosityTrace = 9

	// LogFormatText specifies a textual log format.
	LogFormatText = "text"
	// LogFormatJSON specifies a JSON log format.
	LogFormatJSON = "json"
)

// Config represents the configuration settings for the logger.
type Config struct {
	// Verbosity specifies the logging verbosity level.
	Verbosity int
	// Format specifies the logging output format.
	Format string
	// Output specifies the destination to write logs to. Use the special
	// values stderr and stdout for the standard streams.
	Output string
}

// Configure will configure the logger from the supplied config.
func Configure(logConfig *Config) error {
	configureVerbosity(logConfig)

	switch strings.ToLower(logConfig.Format) {
	case LogFormatJSON:
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case LogFormatText:
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
	default:
		return invalidLogFormatError{format: logConfig.Format}
	}

	switch logConfig.Output {
	case "":
		return ErrLogOutputRequired
	case "stderr":
		logrus.SetOutput(os.Stderr)
	case "stdout":
		logrus.SetOutput(os.Stdout)
	default:
		file, err := os.OpenFile(logConfig.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file %s: %w", logConfig.Output, err)
		}

		logrus.SetOutput(file)
	}

	return nil
}

// AddFlagsToCommand will add the logging flags to the supplied command.
func AddFlagsToCommand(cmd *cobra.Command, config *Config) {
	cmd.PersistentFlags().IntVarP(&config.Verbosity,
		"verbosity",
		"v",
		LogVerbosityInfo,
		"The verbosity level of the logging. 0=info, 2=debug, 9=trace.")

	cmd.PersistentFlags().StringVar(&config.Format,
		"log-format",
		LogFormatText,
		"The format of the logging output. Can be 'text' or 'json'.")

	cmd.PersistentFlags().StringVar(&config.Output,
		"log-output",
		"stderr",
		"The output for logging. Supply a file path or one of the special values 'stdout' and 'stderr'.")
}

// GetLogger will get a logger from the supplied context or return a logger
// based on the standard logger.
func GetLogger(ctx context.Context) *logrus.Entry {
	if logger, ok := ctx.Value(logCtxKey).(*logrus.Entry); ok {
		return logger
	}

	return logrus.NewEntry(logrus.StandardLogger())
}

// WithLogger attaches the logger to the context.
func WithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	return context.WithValue(ctx, logCtxKey, logger)
}

type contextKey string

const logCtxKey contextKey = "mlhub.logger"

func configureVerbosity(logConfig *Config) {
	logrus.SetLevel(logrus.InfoLevel)

	if logConfig.Verbosity >= LogVerbosityTrace {
		logrus.SetLevel(logrus.TraceLevel)
	} else if logConfig.Verbosity >= LogVerbosityDebug {
		logrus.SetLevel(logrus.DebugLevel)
	}
}
