package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/otterway/pbsync"
	"github.com/otterway/pbsync/internal/clientconfig"
	"github.com/otterway/pbsync/internal/remote"
)

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagDBPath     string
	flagPolicy     string
	flagDemoRemote bool
	flagJSON       bool
	flagVerbose    bool
)

// cliContextKey is the context key CLIContext is stored under.
type cliContextKey struct{}

// CLIContext bundles the opened Client and logger, built once in
// PersistentPreRunE and read by every subcommand's RunE.
type CLIContext struct {
	Client *pbsync.Client
	Logger *slog.Logger
}

func cliContextFrom(ctx context.Context) *CLIContext {
	cc, _ := ctx.Value(cliContextKey{}).(*CLIContext)
	return cc
}

func mustCLIContext(ctx context.Context) *CLIContext {
	cc := cliContextFrom(ctx)
	if cc == nil {
		panic("BUG: CLIContext not found in context — openClient must run in PersistentPreRunE")
	}

	return cc
}

// newRootCmd builds the fully-assembled root command with every subcommand
// registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "pbsync",
		Short:         "pbsync cache/sync inspection and ops CLI",
		Long:          "Demo and operations CLI for a pbsync-backed local cache: read, write, and drain the sync queue from the shell.",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return openClient(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if cc := cliContextFrom(cmd.Context()); cc != nil {
				return cc.Client.Close()
			}

			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "TOML config file path (internal/clientconfig format)")
	cmd.PersistentFlags().StringVar(&flagDBPath, "db", ":memory:", "cache database path")
	cmd.PersistentFlags().StringVar(&flagPolicy, "policy", "CacheAndNetwork", "default request policy (CacheOnly, NetworkOnly, CacheFirst, NetworkFirst, CacheAndNetwork)")
	cmd.PersistentFlags().BoolVar(&flagDemoRemote, "demo-remote", false, "back RemoteClient with an in-memory fake instead of leaving it nil (no real server needed)")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "print results as JSON")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(newSchemaCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newCreateCmd())
	cmd.AddCommand(newUpdateCmd())
	cmd.AddCommand(newDeleteCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newMaintenanceCmd())

	return cmd
}

// openClient resolves Config from the optional TOML file plus flags, opens
// a Client, and stashes it (with a logger) in the command's context, the
// same PersistentPreRunE shape the core's originating project uses for its
// own four-layer config resolution.
func openClient(cmd *cobra.Command) error {
	level := slog.LevelWarn
	if flagVerbose {
		level = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	dbPath := flagDBPath
	policyName := flagPolicy
	var cacheTTL *time.Duration
	var fullText bool
	var maxExpand int

	if flagConfigPath != "" {
		f, err := clientconfig.Load(flagConfigPath)
		if err != nil {
			return err
		}

		if f.DBPath != "" && !cmd.Flags().Changed("db") {
			dbPath = f.DBPath
		}

		if f.RequestPolicy != "" && !cmd.Flags().Changed("policy") {
			policyName = f.RequestPolicy
		}

		if f.CacheTTL != "" {
			d, err := time.ParseDuration(f.CacheTTL)
			if err != nil {
				return fmt.Errorf("pbsync: cmd: parsing cache_ttl %q: %w", f.CacheTTL, err)
			}

			cacheTTL = &d
		}

		fullText = f.FullTextSearch
		maxExpand = f.MaxExpandDepth
	}

	reqPolicy, err := pbsync.ParsePolicy(policyName)
	if err != nil {
		return err
	}

	var remoteClient remote.Client
	if flagDemoRemote {
		remoteClient = remote.NewFake()
	}

	client, err := pbsync.New(cmd.Context(), pbsync.Config{
		RequestPolicy:  reqPolicy,
		DBPath:         dbPath,
		CacheTTL:       cacheTTL,
		RemoteClient:   remoteClient,
		FullTextSearch: fullText,
		MaxExpandDepth: maxExpand,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("pbsync: cmd: opening client: %w", err)
	}

	cc := &CLIContext{Client: client, Logger: logger}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cmd.SetContext(context.WithValue(ctx, cliContextKey{}, cc))

	return nil
}
