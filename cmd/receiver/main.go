package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/cnotch/xlog"
	"github.com/spf13/cobra"

	"github.com/blgpb/streaming-udp-video/internal/app"
	"github.com/blgpb/streaming-udp-video/internal/config"
	"github.com/blgpb/streaming-udp-video/internal/display"
	"github.com/blgpb/streaming-udp-video/internal/display/ebitenview"
)

func main() {
	if err := receiverCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func receiverCmd() *cobra.Command {
	flags := &app.Flags{}
	var headless bool
	cmd := &cobra.Command{
		Use:          "receiver",
		Short:        "Receive UDP video streams and show the latest frame of each",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logCfg, streams, err := flags.Resolve(cmd, config.RoleReceiver)
			if err != nil {
				return err
			}
			if err := logCfg.InitLogger(); err != nil {
				return err
			}
			logger := xlog.L()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var view *ebitenview.View
			var board display.Board = display.Discard
			if !headless {
				view = ebitenview.New(config.Name + " receiver")
				board = view
			}

			for _, s := range streams {
				logger.Infof("stream %s: port %d -> display %s (%s, timeout %s)",
					s.Name, s.LocalPort, s.Display, s.Transport, s.Timeout)
			}
			runner, err := app.Start(ctx, streams, board, logger)
			if err != nil {
				return err
			}

			if view != nil {
				// The window stays up until closed; failed streams keep their last picture.
				if err := view.Run(ctx); err != nil {
					logger.Errorf("display window: %v", err)
				}
			} else {
				select {
				case <-ctx.Done():
				case <-runner.Done():
				}
			}

			logger.Info("shutting down")
			stop()
			return runner.Close()
		},
	}
	flags.Register(cmd, config.RoleReceiver)
	cmd.Flags().BoolVar(&headless, "headless", false, "Run without a window (frames are decoded and counted only)")
	return cmd
}
