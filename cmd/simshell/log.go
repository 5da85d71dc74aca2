package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fentz26/simshell/internal/tui"
)

var logOut string

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Export a running server's session log as CSV",
	RunE:  runLog,
}

func init() {
	logCmd.Flags().StringVarP(&logOut, "output", "o", "", "Write to file instead of stdout")
}

func runLog(cmd *cobra.Command, args []string) error {
	addr := remoteAddr
	if addr == "" {
		addr = "http://" + cfg.Server.Listen
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	csv, err := tui.NewClient(addr).ExportLog(ctx)
	if err != nil {
		return err
	}
	if csv == "" {
		fmt.Fprintln(cmd.ErrOrStderr(), "session log is empty")
		return nil
	}
	if logOut != "" {
		return os.WriteFile(logOut, []byte(csv), 0o644)
	}
	fmt.Fprint(cmd.OutOrStdout(), csv)
	return nil
}
