package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vytor/lingoflash/internal/models"
)

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Show daily study progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("days")
		if days <= 0 {
			return fmt.Errorf("--days must be positive")
		}
		return withApp(cmd, func(a *app) error {
			since := time.Now().In(cfg.Location()).AddDate(0, 0, -(days - 1))
			daily, err := a.progress.Daily(cmd.Context(), since)
			if err != nil {
				return err
			}
			printProgress(cmd.OutOrStdout(), daily)
			return nil
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show item statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app) error {
			printStats(cmd.OutOrStdout(), a.runner.Stats(time.Now()))
			return nil
		})
	},
}

func init() {
	progressCmd.Flags().Int("days", 7, "number of calendar days to show")
}

func printProgress(w io.Writer, daily []models.DailyProgress) {
	if len(daily) == 0 {
		fmt.Fprintln(w, "No reviews in this period.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tITEMS\tMINUTES\tACCURACY\tSTREAK")
	for _, d := range daily {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.0f%%\t%d\n",
			d.Date.Format(time.DateOnly), d.CompletedItems, d.TotalTimeMinutes, d.AccuracyPercent, d.StreakDays)
	}
	tw.Flush()
}

func printStats(w io.Writer, st models.ItemStats) {
	fmt.Fprintf(w, "items:       %d\n", st.TotalItems)
	fmt.Fprintf(w, "new:         %d\n", st.NewItems)
	fmt.Fprintf(w, "due:         %d\n", st.DueItems)
	fmt.Fprintf(w, "mastered:    %d\n", st.MasteredItems)
	fmt.Fprintf(w, "struggling:  %d\n", st.StrugglingItems)
	fmt.Fprintf(w, "avg mastery: %.1f\n", st.AvgMastery)
}
