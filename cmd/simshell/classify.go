package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fentz26/simshell/internal/classifier"
	"github.com/fentz26/simshell/internal/oracle"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <command>",
	Short: "Show which category a command would run in",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runClassify,
}

func runClassify(cmd *cobra.Command, args []string) error {
	cats, err := cfg.Categories()
	if err != nil {
		return err
	}

	o, _ := oracle.New(&cfg.Oracle, logger)
	c := classifier.New(o, classifier.WithLogger(logger))

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Oracle.TimeoutSec+5)*time.Second)
	defer cancel()

	command := strings.Join(args, " ")
	result := c.Classify(ctx, command, cats)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "category:  %s\n", result.Category)
	if result.Reasoning != "" {
		fmt.Fprintf(out, "reasoning: %s\n", result.Reasoning)
	}
	if c.IsInternal(command) {
		fmt.Fprintln(out, "matched:   internal command table")
	}
	return nil
}
