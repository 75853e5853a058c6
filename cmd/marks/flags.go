package main

import (
	"github.com/urfave/cli/v2"
)

const (
	EnvFileFlagName  = "env-file"
	LogLevelFlagName = "log.level"
	KeysFlagName     = "keys"
	ValuesFlagName   = "values"
	SaltsFlagName    = "salts"
	WaitFlagName     = "wait"
	JournalFlagName  = "journal"
)

func prefixEnvVars(name string) []string {
	return []string{"MARKS_" + name}
}

var globalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  EnvFileFlagName,
		Usage: "Dotenv file loaded before reading the configuration. Missing files are ignored.",
		Value: ".env",
	},
	&cli.StringFlag{
		Name:    LogLevelFlagName,
		Usage:   "Log level: trace, debug, info, warn, error, crit",
		Value:   "info",
		EnvVars: prefixEnvVars("LOG_LEVEL"),
	},
}

var submitFlags = []cli.Flag{
	&cli.StringSliceFlag{
		Name:    KeysFlagName,
		Usage:   "Combining mark code points (uint16), comma separated",
		Value:   cli.NewStringSlice("768", "769", "770", "771"),
		EnvVars: prefixEnvVars("KEYS"),
	},
	&cli.StringSliceFlag{
		Name:    ValuesFlagName,
		Usage:   "Base character code points (uint16) paired with --keys, comma separated",
		Value:   cli.NewStringSlice("97", "101", "105", "111"),
		EnvVars: prefixEnvVars("VALUES"),
	},
	&cli.StringSliceFlag{
		Name:    SaltsFlagName,
		Usage:   "Salts (uint256), comma separated",
		Value:   cli.NewStringSlice("12345", "67890"),
		EnvVars: prefixEnvVars("SALTS"),
	},
	&cli.BoolFlag{
		Name:    WaitFlagName,
		Usage:   "Wait for each transaction to be mined before sending the next",
		EnvVars: prefixEnvVars("WAIT"),
	},
	&cli.StringFlag{
		Name:    JournalFlagName,
		Usage:   "File recording broadcast calls so a re-run skips them. Empty disables.",
		EnvVars: prefixEnvVars("JOURNAL"),
	},
}
