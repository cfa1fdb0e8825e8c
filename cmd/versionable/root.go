package main

import (
	"github.com/spf13/cobra"

	"github.com/vault-md/versionable/internal/config"
	"github.com/vault-md/versionable/internal/database"
	"github.com/vault-md/versionable/internal/git"
	"github.com/vault-md/versionable/internal/logger"
	"github.com/vault-md/versionable/internal/metrics"
	"github.com/vault-md/versionable/internal/usecase"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:          "versionable",
	Short:        "versionable - Version history for JSON documents",
	Long:         "versionable records every change to a JSON document and keeps a navigable, revertible history.",
	Version:      buildVersion,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: $XDG_CONFIG_HOME/versionable/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "V", false, "Log debug output to stderr")

	rootCmd.AddCommand(newSetCmd())
	rootCmd.AddCommand(newGetCmd())
	rootCmd.AddCommand(newEditCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newDeleteCmd())
	rootCmd.AddCommand(newRestoreCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newShowCmd())
	rootCmd.AddCommand(newAtCmd())
	rootCmd.AddCommand(newDiffCmd())
	rootCmd.AddCommand(newRevertCmd())
	rootCmd.AddCommand(newTrimCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSnapshotCmd())
	rootCmd.AddCommand(newMCPCmd())
}

// session is the per-command wiring of settings, database and use cases.
type session struct {
	settings config.Settings
	dbCtx    *database.Context
	docs     *usecase.Documents
	log      *logger.Logger
}

func openSession(cmd *cobra.Command) (*session, error) {
	settings, err := config.LoadSettings(configPath)
	if err != nil {
		return nil, err
	}

	level := settings.Log.Level
	if verbose {
		level = "debug"
	}
	log := logger.New(logger.Config{
		Level:  level,
		Pretty: settings.Log.Pretty,
		Output: cmd.ErrOrStderr(),
	})

	dbCtx, err := database.CreateDatabase("")
	if err != nil {
		return nil, err
	}

	docs, err := usecase.NewDocuments(dbCtx, settings,
		usecase.WithLogger(log),
		usecase.WithMetrics(metrics.NewMetrics()),
	)
	if err != nil {
		_ = database.CloseDatabase(dbCtx)
		return nil, err
	}

	log.Debug().Str("db", config.GetDBPath()).Msg("session opened")
	return &session{settings: settings, dbCtx: dbCtx, docs: docs, log: log}, nil
}

func (s *session) Close() {
	_ = database.CloseDatabase(s.dbCtx)
}

// user returns the attribution for a write. An explicit flag wins; with
// git_user enabled the git identity of the working directory fills in.
func (s *session) user(flag string) string {
	if flag != "" || !s.settings.GitUser {
		return flag
	}
	id, err := git.GetIdentity("")
	if err != nil {
		s.log.Debug().Err(err).Msg("git identity unavailable")
		return ""
	}
	if id.IsZero() {
		s.log.Debug().Msg("git identity not configured")
	}
	return id.UserID()
}
