package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/blesh/pkg/config"
)

// cliLogLevels are the levels accepted by --log-level
var cliLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// configureLogger builds the command logger. --log-level wins over --verbose,
// and both win over log_level from the config file. Logs go to the command's stderr.
func configureLogger(cmd *cobra.Command, verboseFlagName string, cfg *config.Config) (*logrus.Logger, error) {
	effective := config.DefaultConfig()
	if cfg != nil {
		c := *cfg
		effective = &c
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		if !cliLogLevels[level] {
			return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", level)
		}
		effective.LogLevel = level
	} else if verbose, _ := cmd.Flags().GetBool(verboseFlagName); verbose {
		effective.LogLevel = logrus.DebugLevel.String()
	}

	logger := effective.NewLogger()
	logger.SetOutput(cmd.ErrOrStderr())
	return logger, nil
}
