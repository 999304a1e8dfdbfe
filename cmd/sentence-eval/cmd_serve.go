package main

import (
	"errors"
	"fmt"
	"net"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/danielpatrickdp/sentence-eval/internal/codec"
	"github.com/danielpatrickdp/sentence-eval/internal/config"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose the configured backend as a gRPC evaluator sidecar",
		Long: `Serves the gemini or offline backend over gRPC so that other
sentence-eval processes can use it with --backend remote. Stops on
interrupt after in-flight calls finish.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if cfg.Backend == config.BackendRemote {
				return errors.New("serve needs a local backend (gemini or offline), not remote")
			}
			if addr == "" {
				addr = cfg.ServeAddr
			}

			ctx := cmd.Context()
			adapter, closer, err := newAdapter(ctx, cfg)
			if err != nil {
				return err
			}
			defer closer.Close()

			lis, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen %s: %w", addr, err)
			}

			srv := grpc.NewServer()
			codec.RegisterEvaluatorServer(srv, codec.NewAdapterServer(adapter, opts.logger))

			errc := make(chan error, 1)
			go func() { errc <- srv.Serve(lis) }()
			opts.logger.Info("evaluator sidecar listening",
				zap.String("addr", lis.Addr().String()),
				zap.String("backend", cfg.Backend))

			select {
			case err := <-errc:
				return fmt.Errorf("serve: %w", err)
			case <-ctx.Done():
				opts.logger.Info("shutting down sidecar")
				srv.GracefulStop()
				return nil
			}
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default serve_addr from config)")
	return cmd
}
