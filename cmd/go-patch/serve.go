// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/petar-djukic/go-patch/internal/server"
)

// newServeCmd creates the "serve" command.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the patch engine over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			if viper.GetString("log-level") != "debug" {
				gin.SetMode(gin.ReleaseMode)
			}

			s := server.New(server.Config{
				Addr:         viper.GetString("addr"),
				MaxBodyBytes: viper.GetInt64("max-body-bytes"),
				Version:      version,
				Logger:       newLogger(),
			})

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return s.Run(ctx)
		},
	}

	cmd.Flags().String("addr", ":8080", "Listen address")
	cmd.Flags().Int64("max-body-bytes", 8<<20, "Request body limit in bytes")
	viper.BindPFlag("addr", cmd.Flags().Lookup("addr"))
	viper.BindPFlag("max-body-bytes", cmd.Flags().Lookup("max-body-bytes"))

	return cmd
}
