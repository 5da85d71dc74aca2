package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fentz26/simshell/internal/config"
	"github.com/fentz26/simshell/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "simshell",
	Short: "simshell - a simulated multi-language shell",
	Long: `simshell classifies each command into a category (internal, python, unix,
windows, sql, excel, typescript) and runs it through a simulated executor or
the built-in command interpreter.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var (
	configPath  string
	remoteAddr  string
	userFlag    string
	dbFlag      string
	catsFlag    string
	overrideAll bool

	cfg    *config.Config
	logger *zap.Logger
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.simshell/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&remoteAddr, "remote", "", "Talk to a running server at this URL instead of an in-process session")
	rootCmd.PersistentFlags().StringVar(&userFlag, "user", "", "User id for permission checks")
	rootCmd.PersistentFlags().StringVar(&dbFlag, "db", "", "SQLite file backing the session (default in-memory)")
	rootCmd.PersistentFlags().StringVar(&catsFlag, "categories", "", "Comma-separated active categories")
	rootCmd.PersistentFlags().BoolVar(&overrideAll, "override-all", false, "Bypass every permission check")

	rootCmd.AddCommand(consoleCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(commandsCmd)
	rootCmd.AddCommand(configCmd)
}

// setup loads configuration and applies flags, the last and strongest layer.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("user") {
		cfg.Session.UserID = userFlag
	}
	if flags.Changed("db") {
		cfg.Store.Path = dbFlag
	}
	if flags.Changed("categories") {
		cfg.Session.ActiveCategories = splitList(catsFlag)
	}
	if flags.Changed("override-all") {
		cfg.Session.OverrideAll = overrideAll
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	// The console owns the terminal, so it only logs to file.
	logger = logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
		Stderr: cmd.Name() != consoleCmd.Name(),
	})
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
