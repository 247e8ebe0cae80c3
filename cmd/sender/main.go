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
	if err := senderCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func senderCmd() *cobra.Command {
	flags := &app.Flags{}
	cmd := &cobra.Command{
		Use:          "sender",
		Short:        "Capture camera frames and stream them as UDP datagrams",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logCfg, streams, err := flags.Resolve(cmd, config.RoleSender)
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
			for _, s := range streams {
				if s.Preview {
					view = ebitenview.New(config.Name + " sender preview")
					board = view
					break
				}
			}

			for _, s := range streams {
				logger.Infof("stream %s: %s -> %s:%d (%s, scale %g, quality %d, %s)",
					s.Name, s.Source, s.RemoteHost, s.RemotePort, s.Transport, s.Scale, s.Quality, s.Display)
			}
			runner, err := app.Start(ctx, streams, board, logger)
			if err != nil {
				return err
			}

			if view != nil {
				go func() {
					runner.Wait()
					stop()
				}()
				if err := view.Run(ctx); err != nil {
					logger.Errorf("preview window: %v", err)
				}
				stop()
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
	flags.Register(cmd, config.RoleSender)
	return cmd
}
