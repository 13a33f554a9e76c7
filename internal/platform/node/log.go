package node

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/tokenized/pkg/logger"
)

// ContextWithLogger returns a context carrying the log configuration. Development logging adds
// verbose entries along with the subsystem and microsecond fields. Entries from subsystems not
// listed are dropped.
func ContextWithLogger(ctx context.Context, isDevelopment, isText bool, filePath string,
	subSystems ...string) (context.Context, error) {

	logConfig := logger.NewDevelopmentConfig()
	logConfig.IsText = isText

	logConfig.Main.MinLevel = logger.LevelInfo
	if isDevelopment {
		logConfig.Main.Format |= logger.IncludeSystem | logger.IncludeMicro
		logConfig.Main.MinLevel = logger.LevelVerbose
	}

	if filePath != "" {
		if err := logConfig.Main.AddFile(filePath); err != nil {
			return ctx, errors.Wrap(err, "add log file")
		}
	}

	for _, subSystem := range subSystems {
		logConfig.EnableSubSystem(subSystem)
	}

	return logger.ContextWithLogConfig(ctx, logConfig), nil
}

// IsTextFormat returns true when the format name selects text logs.
func IsTextFormat(format string) bool {
	return strings.EqualFold(format, "text")
}

func ContextWithNoLogger(ctx context.Context) context.Context {
	return logger.ContextWithNoLogger(ctx)
}

// ContextWithLogTrace tags every entry logged with ctx, usually with a txid.
func ContextWithLogTrace(ctx context.Context, trace string) context.Context {
	return logger.ContextWithLogTrace(ctx, trace)
}

// LogVerbose, LogWarn and LogError log at their level with the caller's file and line.

func LogVerbose(ctx context.Context, format string, values ...interface{}) error {
	return logger.LogDepth(ctx, logger.LevelVerbose, 1, format, values...)
}

func LogWarn(ctx context.Context, format string, values ...interface{}) error {
	return logger.LogDepth(ctx, logger.LevelWarn, 1, format, values...)
}

func LogError(ctx context.Context, format string, values ...interface{}) error {
	return logger.LogDepth(ctx, logger.LevelError, 1, format, values...)
}
