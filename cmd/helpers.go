package cmd

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/user/infercore/internal/errors"
	"github.com/user/infercore/internal/logging"
)

// InitLogger creates a configured logger for CLI commands.
//   - projectPath determines the log directory (.infercore/logs under it)
//   - debug enables caller information in logs
//   - verbose mirrors log output to the console
//
// The caller is responsible for calling logger.Sync() when done.
func InitLogger(projectPath string, debug bool, verbose bool) (*logging.Logger, error) {
	logDir := ".infercore/logs"
	if projectPath != "." {
		logDir = projectPath + "/.infercore/logs"
	}

	logCfg := &logging.Config{
		LogDir:         logDir,
		FileLevel:      logging.LevelFromString("info"),
		ConsoleLevel:   logging.LevelFromString("debug"),
		EnableCaller:   debug,
		ConsoleEnabled: verbose,
	}

	logger, err := logging.NewLogger(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// HandleCommandError prints a rich message for application errors and exits
// with the error's exit code. Unknown errors are returned for cobra to print.
func HandleCommandError(err error) error {
	if err == nil {
		return nil
	}

	var appErr *errors.InferCoreError
	if stderrors.As(err, &appErr) {
		fmt.Fprintln(os.Stderr, appErr.GetUserMessage())
		os.Exit(int(appErr.ExitCode))
	}
	return err
}
