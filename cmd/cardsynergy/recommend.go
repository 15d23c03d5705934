package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ramonehamilton/cardsynergy/internal/mtga/cards/filter"
	"github.com/ramonehamilton/cardsynergy/internal/storage/models"
)

func newRecommendCmd(c *cli) *cobra.Command {
	var (
		recType  string
		limit    int
		identity []string
		format   string
	)

	cmd := &cobra.Command{
		Use:   "recommend <card-id>",
		Short: "Print synergy or similarity recommendations for a card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var f *filter.Filter
			if len(identity) > 0 || format != "" {
				f = &filter.Filter{ColorIdentity: identity, Format: format}
			}

			return c.withApp(cmd.Context(), func(a *app) error {
				recs, err := a.engine.Recommendations(cmd.Context(), args[0], recType, limit, f)
				if err != nil {
					return err
				}
				if len(recs) == 0 {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No recommendations.")
					return nil
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				_, _ = fmt.Fprintln(w, "SCORE\tCARD\tID\tREASON")
				for _, r := range recs {
					_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", r.Score, r.Card.Name, r.Card.ID, r.Reason)
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&recType, "type", models.RecommendationSynergy,
		fmt.Sprintf("recommendation type (%s)", strings.Join([]string{models.RecommendationSynergy, models.RecommendationSimilarity}, ", ")))
	cmd.Flags().IntVar(&limit, "limit", 0, "number of results (0 uses the configured default)")
	cmd.Flags().StringSliceVar(&identity, "identity", nil, "restrict to cards within this color identity, e.g. W,U")
	cmd.Flags().StringVar(&format, "format", "", "restrict to cards legal in this format")

	return cmd
}
