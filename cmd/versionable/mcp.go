package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/vault-md/versionable/internal/mcp"
	"github.com/vault-md/versionable/internal/metrics"
)

func newMCPCmd() *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server",
		Long:  "Start the Model Context Protocol server for versionable",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}

			if metricsAddr != "" {
				ms := metrics.NewServer(metricsAddr, nil, s.log)
				go func() {
					if err := ms.Start(); err != nil {
						s.log.Error().Err(err).Msg("metrics server stopped")
					}
				}()
				defer func() {
					ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = ms.Shutdown(ctx)
				}()
			}

			// Run closes the database
			server := mcp.NewServer(s.dbCtx, s.docs, buildVersion)
			return server.Run(context.Background())
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")

	return cmd
}
