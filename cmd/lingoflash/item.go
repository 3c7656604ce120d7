package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/vytor/lingoflash/internal/models"
)

var itemCmd = &cobra.Command{
	Use:   "item",
	Short: "Manage learning items",
}

var itemAddCmd = &cobra.Command{
	Use:   "add <content>",
	Short: "Add a learning item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _ := cmd.Flags().GetString("id")
		kind, _ := cmd.Flags().GetString("kind")
		difficulty, _ := cmd.Flags().GetString("difficulty")
		tags, _ := cmd.Flags().GetStringSlice("tag")
		if id == "" {
			id = uuid.NewString()
		}

		return withApp(cmd, func(a *app) error {
			item, err := a.store.Upsert(cmd.Context(), models.LearningItem{
				ID:         id,
				Kind:       models.Kind(kind),
				Difficulty: models.Difficulty(difficulty),
				Content:    args[0],
				Tags:       tags,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s\n", item.ID)
			return nil
		})
	},
}

var itemListCmd = &cobra.Command{
	Use:   "list",
	Short: "List learning items",
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, _ := cmd.Flags().GetString("kind")
		difficulty, _ := cmd.Flags().GetString("difficulty")
		tag, _ := cmd.Flags().GetString("tag")

		return withApp(cmd, func(a *app) error {
			items := a.store.List(models.ItemFilter{
				Kind:       models.Kind(kind),
				Difficulty: models.Difficulty(difficulty),
				Tag:        tag,
			})
			printItems(cmd.OutOrStdout(), items)
			return nil
		})
	},
}

var itemRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a learning item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app) error {
			existed, err := a.store.Remove(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !existed {
				return fmt.Errorf("item %s not found", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
			return nil
		})
	},
}

func init() {
	itemAddCmd.Flags().String("id", "", "item id (random when empty)")
	itemAddCmd.Flags().String("kind", string(models.KindVocabulary), "vocabulary, grammar, reading, listening, speaking or writing")
	itemAddCmd.Flags().String("difficulty", string(models.DifficultyBeginner), "beginner, intermediate or advanced")
	itemAddCmd.Flags().StringSlice("tag", nil, "tag (repeatable)")

	itemListCmd.Flags().String("kind", "", "only this kind")
	itemListCmd.Flags().String("difficulty", "", "only this difficulty")
	itemListCmd.Flags().String("tag", "", "only items with this tag")

	itemCmd.AddCommand(itemAddCmd, itemListCmd, itemRemoveCmd)
}

func printItems(w io.Writer, items []models.LearningItem) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tDIFFICULTY\tMASTERY\tREVIEWS\tNEXT\tCONTENT\tTAGS")
	for _, it := range items {
		next := "new"
		if it.NextReview != nil {
			next = it.NextReview.Local().Format(time.DateTime)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%s\t%s\n",
			it.ID, it.Kind, it.Difficulty, it.MasteryLevel, it.ReviewCount, next,
			truncate(it.Content, 40), strings.Join(it.Tags, ","))
	}
	tw.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
