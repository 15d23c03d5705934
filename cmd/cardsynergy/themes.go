package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newClassifyCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <card-id>",
		Short: "Print a card's strategic themes, classifying it if needed",
		Long: `Print a card's strategic themes.

A card is sent to the configured LLM the first time its themes are
requested; later calls read the stored result. Use reset-themes to
force a new classification.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(a *app) error {
				suggestions, err := a.engine.ThemeSuggestions(cmd.Context(), args[0], nil)
				if err != nil {
					return err
				}
				if len(suggestions) == 0 {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No themes.")
					return nil
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				_, _ = fmt.Fprintln(w, "ID\tTHEME\tCONFIDENCE\tVOTES\tCARDS")
				for _, s := range suggestions {
					_, _ = fmt.Fprintf(w, "%d\t%s\t%d%%\t+%d/-%d\t%d\n",
						s.ID, s.ThemeName, s.Confidence, s.Upvotes, s.Downvotes, s.MatchingCards)
				}
				return w.Flush()
			})
		},
	}
}

func newResetThemesCmd(c *cli) *cobra.Command {
	var cardID string

	cmd := &cobra.Command{
		Use:   "reset-themes",
		Short: "Delete stored theme classifications and their votes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd.Context(), func(a *app) error {
				n, err := a.engine.ResetThemes(cmd.Context(), cardID)
				if err != nil {
					return err
				}
				scope := "all cards"
				if cardID != "" {
					scope = cardID
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d theme assignments for %s\n", n, scope)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&cardID, "card", "", "only reset this card")
	return cmd
}
