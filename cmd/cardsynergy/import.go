package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ramonehamilton/cardsynergy/internal/mtga/cards/importer"
)

func newImportCmd(c *cli) *cobra.Command {
	var (
		file      string
		query     string
		batchSize int
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load cards from Scryfall into the catalog",
		Long: `Load cards from Scryfall into the catalog.

Either read a downloaded bulk data file (plain or .gz), or page through
a live Scryfall search. Tokens, emblems, art cards and non-English
printings are skipped. Existing cards are replaced.

Examples:
  cardsynergy import --file oracle-cards-20240101.json.gz
  cardsynergy import --query "set:blb"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (file == "") == (query == "") {
				return errors.New("exactly one of --file or --query is required")
			}

			return c.withApp(cmd.Context(), func(a *app) error {
				lastLog := time.Now()
				im := importer.New(a.catalog, importer.Options{
					BatchSize: batchSize,
					Progress: func(imported int) {
						if time.Since(lastLog) >= 2*time.Second {
							log.Info().Int("imported", imported).Msg("Import progress")
							lastLog = time.Now()
						}
					},
				})

				var (
					stats *importer.Stats
					err   error
				)
				if file != "" {
					stats, err = im.ImportFile(cmd.Context(), file)
				} else {
					stats, err = im.ImportQuery(cmd.Context(), a.scryfall, query)
				}
				if err != nil {
					return err
				}

				total, err := a.catalog.Count(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to count cards: %w", err)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Imported %d cards (%d skipped, %d malformed) in %s; catalog holds %d cards\n",
					stats.Imported, stats.Skipped, stats.Errors, stats.Duration.Round(time.Millisecond), total)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Scryfall bulk data file (.json or .json.gz)")
	cmd.Flags().StringVar(&query, "query", "", "Scryfall search query")
	cmd.Flags().IntVar(&batchSize, "batch-size", importer.DefaultOptions().BatchSize, "cards written per transaction")

	return cmd
}
