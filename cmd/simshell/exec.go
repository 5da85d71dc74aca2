package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fentz26/simshell/internal/models"
	"github.com/fentz26/simshell/internal/shell"
	"github.com/fentz26/simshell/internal/tui"
)

var (
	execFile   string
	execJSON   bool
	execLogOut string
)

var execCmd = &cobra.Command{
	Use:   "exec [command]",
	Short: "Run commands non-interactively",
	Long: `Runs one command given as arguments, or one command per line from --file
("-" reads stdin). All commands share one session, so "init db" followed by
"add_role ..." behaves as it would in the console.`,
	Example: `  simshell exec 'echo hello'
  printf 'init\ninit db\nx = 5\nlist py vars\n' | simshell exec --file -`,
	RunE: runExec,
}

func init() {
	execCmd.Flags().StringVarP(&execFile, "file", "f", "", "Read commands from a file, one per line")
	execCmd.Flags().BoolVar(&execJSON, "json", false, "Print raw JSON responses")
	execCmd.Flags().StringVar(&execLogOut, "export-log", "", "Write the session log as CSV to this file when done")
}

func runExec(cmd *cobra.Command, args []string) error {
	lines, err := execInput(args)
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		return fmt.Errorf("no commands given")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var backend tui.Backend
	var sess *shell.Session
	if remoteAddr != "" {
		backend = tui.NewClient(remoteAddr)
	} else {
		sess, err = shell.Open(cfg, logger)
		if err != nil {
			return err
		}
		defer sess.Close()
		backend = tui.Local{Session: sess}
	}

	out := cmd.OutOrStdout()
	for _, line := range lines {
		resp, err := backend.Dispatch(ctx, line)
		if err != nil {
			return fmt.Errorf("%s: %w", line, err)
		}
		if execJSON {
			printJSON(out, resp)
			continue
		}
		printResponse(out, resp)
		for _, d := range resp.Downloads {
			path := filepath.Base(d.Filename)
			if err := os.WriteFile(path, []byte(d.Content), 0o644); err != nil {
				return fmt.Errorf("saving %s: %w", path, err)
			}
			fmt.Fprintf(out, "saved %s\n", path)
		}
	}

	if execLogOut == "" {
		return nil
	}
	var csv string
	if sess != nil {
		csv, err = sess.ExportCSV()
	} else {
		csv, err = tui.NewClient(remoteAddr).ExportLog(ctx)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(execLogOut, []byte(csv), 0o644)
}

func execInput(args []string) ([]string, error) {
	if execFile == "" {
		if len(args) == 0 {
			return nil, nil
		}
		return []string{strings.Join(args, " ")}, nil
	}

	var r io.Reader = os.Stdin
	if execFile != "-" {
		f, err := os.Open(execFile)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" && !strings.HasPrefix(line, "#") {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}

var linePrefixes = map[models.OutputType]string{
	models.OutputCommand: "$ ",
	models.OutputError:   "! ",
	models.OutputWarning: "~ ",
	models.OutputInfo:    "i ",
}

func printResponse(w io.Writer, resp *shell.Response) {
	for _, l := range resp.Lines {
		fmt.Fprintf(w, "%s%s\n", linePrefixes[l.Type], l.Text)
	}
}
