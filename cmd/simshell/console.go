package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fentz26/simshell/internal/shell"
	"github.com/fentz26/simshell/internal/tui"
)

var downloadDir string

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Launch the interactive console",
	RunE:  runConsole,
}

func init() {
	consoleCmd.Flags().StringVar(&downloadDir, "downloads", ".", "Directory for exported logs and database dumps")
}

func runConsole(cmd *cobra.Command, args []string) error {
	var backend tui.Backend
	if remoteAddr != "" {
		client := tui.NewClient(remoteAddr)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := client.Health(ctx); err != nil {
			return fmt.Errorf("server at %s is not reachable: %w", remoteAddr, err)
		}
		backend = client
	} else {
		sess, err := shell.Open(cfg, logger)
		if err != nil {
			return err
		}
		defer sess.Close()
		backend = tui.Local{Session: sess}
	}

	app := tui.New(backend, tui.Options{DownloadDir: downloadDir})
	if err := app.Run(); err != nil {
		return fmt.Errorf("console error: %w", err)
	}
	return nil
}
