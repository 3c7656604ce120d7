package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vytor/lingoflash/internal/errors"
	"github.com/vytor/lingoflash/internal/session"
)

var studyCmd = &cobra.Command{
	Use:   "study",
	Short: "Study one session of due and new items",
	Long: `Study one session of due and new items.

For each item answer y (correct), n (incorrect), s (skip) or q (quit).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		maxItems, _ := cmd.Flags().GetInt("max")
		return withApp(cmd, func(a *app) error {
			return runStudy(cmd.Context(), a.runner, cmd.InOrStdin(), cmd.OutOrStdout(), time.Now, maxItems)
		})
	},
}

func init() {
	studyCmd.Flags().Int("max", 0, "maximum items in the session (SESSION_MAX_ITEMS when 0)")
}

// runStudy drives one session over a line-oriented reader. A failed write-back
// is reported and the session carries on; the runner keeps the review buffered.
func runStudy(ctx context.Context, runner *session.Runner, in io.Reader, out io.Writer, now func() time.Time, maxItems int) error {
	s := runner.NewSession(now(), maxItems)
	if len(s.Items) == 0 {
		fmt.Fprintln(out, "Nothing to study right now.")
		return nil
	}
	if err := runner.Start(s, now()); err != nil {
		return err
	}

	scanner := bufio.NewScanner(in)
	for s.State == session.StateInProgress {
		item, _ := s.Current()
		fmt.Fprintf(out, "[%d/%d] (%s, %s) %s\n", s.Position()+1, len(s.Items), item.Kind, item.Difficulty, item.Content)
		fmt.Fprint(out, "correct? [y/n/s/q] ")

		if !scanner.Scan() {
			runner.Abandon(s)
			fmt.Fprintln(out, "\nSession abandoned.")
			return scanner.Err()
		}

		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "y", "yes":
			recordAnswer(ctx, runner, s, item.ID, true, now(), out)
		case "n", "no":
			recordAnswer(ctx, runner, s, item.ID, false, now(), out)
		case "s", "skip":
			if err := runner.Skip(s, item.ID, now()); err != nil {
				return err
			}
		case "q", "quit":
			runner.Abandon(s)
			fmt.Fprintln(out, "Session abandoned.")
			return nil
		default:
			fmt.Fprintln(out, "please answer y, n, s or q")
		}
	}

	fmt.Fprintf(out, "Done: %d answered, %d correct (%.0f%%), %d skipped in %s\n",
		s.Answered, s.Correct, s.Accuracy(), s.Skipped, s.Elapsed(now()).Round(time.Second))
	if n := len(runner.Pending()); n > 0 {
		fmt.Fprintf(out, "%d reviews are waiting to be saved\n", n)
	}
	return nil
}

func recordAnswer(ctx context.Context, runner *session.Runner, s *session.Session, id string, correct bool, at time.Time, out io.Writer) {
	updated, err := runner.CompleteItem(ctx, s, id, correct, at)
	switch {
	case err == nil:
		fmt.Fprintf(out, "mastery %d, next review %s\n", updated.MasteryLevel, updated.NextReview.Local().Format(time.DateOnly))
	case errors.IsPersistence(err):
		fmt.Fprintf(out, "could not save yet, will retry: %v\n", err)
	default:
		fmt.Fprintf(out, "not recorded: %v\n", err)
	}
}
