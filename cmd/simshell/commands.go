package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fentz26/simshell/internal/commands"
)

var commandsCmd = &cobra.Command{
	Use:   "commands",
	Short: "List the built-in internal commands",
	RunE:  runCommands,
}

func runCommands(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tUSAGE\tPERMISSION\tDESCRIPTION")
	fmt.Fprintln(w, "----\t-----\t----------\t-----------")
	for _, def := range commands.Builtins() {
		perm := def.Permission
		if perm == "" {
			perm = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", def.Name, def.Usage(), perm, truncate(def.Description, 60))
	}
	return w.Flush()
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
