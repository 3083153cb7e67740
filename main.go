package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tcg-market-pipeline/commands"
)

func main() {
	root := &cobra.Command{
		Use:   "card-pipeline",
		Short: "Trading card catalog and marketplace listing pipeline",
		Long: `card-pipeline builds a partitioned parquet lake from the card catalog API
and marketplace search results. Each subcommand runs one batch stage; stages
are triggered externally and read the partitions written by the previous one.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		commands.NewCatalogCmd(),
		commands.NewLeaderboardCmd(),
		commands.NewListingsCmd(),
		commands.NewSnapshotCmd(),
		commands.NewSummaryCmd(),
		commands.NewUploadRawCmd(),
		commands.NewQueryCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
