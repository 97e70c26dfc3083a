package main

import (
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/leonardcser/campaign-mcp/internal/config"
	"github.com/leonardcser/campaign-mcp/internal/logger"
	"github.com/leonardcser/campaign-mcp/internal/tools"
)

const version = "0.1.0"

func newRootCmd() *cobra.Command {
	var logStderr bool
	root := &cobra.Command{
		Use:           "campaign-mcp",
		Short:         "MCP server for a tabletop campaign's inventory and currency",
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if logStderr {
				logger.SetOutput(cmd.ErrOrStderr())
				return nil
			}
			return logger.InitFromEnv()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = logger.Close()
		},
		RunE: runServe,
	}
	root.PersistentFlags().BoolVar(&logStderr, "log-stderr", false, "Log to stderr instead of the log file")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Serve the campaign tools over MCP stdio (default)",
			Args:  cobra.NoArgs,
			RunE:  runServe,
		},
		newCacheCmd(),
		newHealthCmd(),
	)
	return root
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger.Infof("Starting Campaign MCP server")
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	s := server.NewMCPServer(
		"Campaign MCP",
		version,
		server.WithRecovery(),
		server.WithToolCapabilities(false),
	)
	logger.Infof("Created MCP server instance")
	tools.Register(s, a.deps)

	logger.Infof("Starting MCP server on stdio")
	if err := server.ServeStdio(s); err != nil {
		logger.Errorf("server error: %v", err)
		return err
	}
	return nil
}

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the response cache",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "size",
			Short: "Print the number of cached reads",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				kv, closeKV, err := openCache(cfg)
				if err != nil {
					return err
				}
				defer func() { _ = closeKV() }()
				n, err := kv.Size()
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d cached reads\n", n)
				return err
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Drop every cached read",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				kv, closeKV, err := openCache(cfg)
				if err != nil {
					return err
				}
				defer func() { _ = closeKV() }()
				if err := kv.Clear(); err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "cache cleared")
				return err
			},
		},
	)
	return cmd
}

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the connection to the campaign database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()
			h := a.deps.Campaign.Health(cmd.Context())
			if !h.Connected {
				return fmt.Errorf("database unreachable: %w", h.Err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), strings.Join([]string{
				"status: healthy",
				fmt.Sprintf("party found: %t", h.PartyFound),
			}, "\n"))
			return err
		},
	}
}
