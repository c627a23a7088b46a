package main

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-taskbuddy/internal/repo"
	"github.com/tbourn/go-taskbuddy/internal/services"
)

func migrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := a.openDB(); err != nil {
				return err
			}
			zerolog.Ctx(cmd.Context()).Info().Str("db", a.cfg.DBPath).Msg("schema up to date")
			return nil
		},
	}
}

func recomputeStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "recompute-stats",
		Short: "Rebuild the statistics aggregate and purge expired update ids",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return a.recompute(ctx)
		},
	}
}

func (a *app) recompute(ctx context.Context) error {
	db, err := a.openDB()
	if err != nil {
		return err
	}
	st, err := (&services.StatsService{DB: db, ActiveWindow: a.cfg.ActiveWindow}).Recompute(ctx)
	if err != nil {
		return err
	}
	purged, err := repo.PurgeExpiredUpdates(ctx, db, time.Now())
	if err != nil {
		return err
	}
	zerolog.Ctx(ctx).Info().
		Int64("total_users", st.TotalUsers).
		Int64("active_users", st.ActiveUsers).
		Int64("total_tasks", st.TotalTasks).
		Int64("completed_tasks", st.CompletedTasks).
		Int64("purged_updates", purged).
		Msg("statistics recomputed")
	return nil
}
