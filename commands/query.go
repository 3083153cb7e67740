package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tcg-market-pipeline/models"
	"tcg-market-pipeline/warehouse"
)

// NewQueryCmd answers read-only questions against the lake through DuckDB.
func NewQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Read-only queries over the analytics datasets",
	}
	cmd.AddCommand(newQueryListingsCmd())
	return cmd
}

func newQueryListingsCmd() *cobra.Command {
	var (
		desc  bool
		limit int
	)

	cmd := &cobra.Command{
		Use:   "listings <card-id>",
		Short: "List a card's listings in the latest market snapshot, by price",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			wh, err := warehouse.Open(cmd.Context(), rt.cfg.DuckDBPath, rt.lake.Paths, rt.logger)
			if err != nil {
				return err
			}
			defer wh.Close()

			rows, err := wh.Listings(cmd.Context(), warehouse.ListingQuery{CardID: args[0], Descending: desc, Limit: limit})
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				fmt.Printf("No listings for %s in the latest snapshot.\n", args[0])
				return nil
			}
			printListings(rows)
			return nil
		},
	}
	cmd.Flags().BoolVar(&desc, "desc", false, "sort by price, highest first")
	cmd.Flags().IntVar(&limit, "limit", 10, fmt.Sprintf("number of listings (1-%d)", warehouse.MaxListingLimit))
	return cmd
}

func printListings(rows []models.SnapshotRow) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LISTING\tPRICE\tGRADED\tCONFIDENCE\tTITLE")
	for _, r := range rows {
		price := "-"
		if r.PriceValue != nil {
			price = fmt.Sprintf("%.2f", *r.PriceValue)
			if r.Currency != nil {
				price += " " + *r.Currency
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%s\n", r.ListingID, price, r.IsGraded, r.TitleMatchConfidence, r.Title)
	}
	_ = tw.Flush()
}
