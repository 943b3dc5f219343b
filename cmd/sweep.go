/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/adboard/apiserver/config"
	"github.com/adboard/apiserver/internal/db"
	"github.com/adboard/apiserver/internal/mq"
	"github.com/adboard/apiserver/internal/server"
	"github.com/adboard/apiserver/internal/services"
	"github.com/spf13/cobra"
)

var (
	sweepDryRun bool
	sweepWatch  bool
	sweepMinAge = services.DefaultSweepMinAge
)

// sweepCmd removes media blobs that no catalog row refers to.
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove media files that no catalog row refers to",
	Long: `Lists every stored image under ads/ and users/ and deletes those without
a media catalog row. Usage:

	adboard sweep --dry-run
	adboard sweep --watch
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		dbConn, err := db.Open(ctx, cfg)
		if err != nil {
			return err
		}
		defer dbConn.Close()

		blobs, err := server.OpenObjectStorage(ctx, cfg)
		if err != nil {
			return err
		}

		sweeper := services.NewSweeper(blobs, server.NewMediaCatalog(dbConn, nil, cfg))
		sweeper.MinAge = sweepMinAge

		report, err := sweeper.Sweep(ctx, sweepDryRun)
		if err != nil {
			return err
		}
		if err := json.NewEncoder(cmd.OutOrStdout()).Encode(report); err != nil {
			return err
		}
		if !sweepWatch {
			return nil
		}

		bus, err := server.OpenEventBus(ctx, cfg)
		if err != nil {
			return err
		}
		if bus == nil {
			return errors.New("--watch needs MQ_BACKEND to be rabbitmq or pubsub")
		}
		defer bus.Close()

		if err := bus.Subscribe(ctx, mq.ChannelAdDeleted, sweeper.HandleAdDeleted); err != nil && !errors.Is(err, ctx.Err()) {
			return fmt.Errorf("watch %s: %w", mq.ChannelAdDeleted, err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)

	sweepCmd.Flags().BoolVar(&sweepDryRun, "dry-run", false, "report orphaned files without deleting them")
	sweepCmd.Flags().BoolVar(&sweepWatch, "watch", false, "after the sweep, delete files of deleted ads as events arrive")
	sweepCmd.Flags().DurationVar(&sweepMinAge, "min-age", services.DefaultSweepMinAge, "skip files modified more recently than this")
}
