package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shrimpsizemoose/examtable/internal/app"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply SQL migrations to the configured database",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(ctx context.Context, svc *app.Service) error {
			dir := svc.Config.Database.MigrationsDir
			if err := svc.Store.ApplyMigrations(dir); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied migrations from %s\n", dir)
			return nil
		})
	},
}

var conflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "List scheduling conflicts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(ctx context.Context, svc *app.Service) error {
			result, err := svc.DetectConflicts(scope())
			if err != nil {
				return err
			}
			if result.ConflictFree {
				fmt.Fprintln(cmd.OutOrStdout(), "no conflicts")
				return nil
			}
			for _, c := range result.Conflicts {
				fmt.Fprintf(cmd.OutOrStdout(), "%-12s %s [%s, %s]\n", c.Type, c.Message, c.ExamID1, c.ExamID2)
			}
			return nil
		})
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Move conflicting draft exams into free slots",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(ctx context.Context, svc *app.Service) error {
			n, err := svc.AutoResolveConflicts(ctx, scope())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "moved %d exam(s)\n", n)
			return nil
		})
	},
}

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish all draft exams if the timetable is conflict free",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(ctx context.Context, svc *app.Service) error {
			n, err := svc.PublishTimetable(ctx, scope())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "published %d exam(s)\n", n)
			return nil
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show publication status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(ctx context.Context, svc *app.Service) error {
			report, err := svc.Status()
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		})
	},
}

var normalizeCmd = &cobra.Command{
	Use:   "normalize-slots",
	Short: "Move exams on the legacy 09:00 and 13:00 sittings to the current slots",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(ctx context.Context, svc *app.Service) error {
			n, err := svc.NormalizeLegacySlots(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated %d exam(s)\n", n)
			return nil
		})
	},
}

func init() {
	scopeFlags(conflictsCmd)
	scopeFlags(resolveCmd)
	scopeFlags(publishCmd)

	rootCmd.AddCommand(migrateCmd, conflictsCmd, resolveCmd, publishCmd, statusCmd, normalizeCmd)
}
