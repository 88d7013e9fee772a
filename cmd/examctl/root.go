package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/examtable/internal/app"
)

var (
	cfgPath    string
	semester   int
	department string
)

var rootCmd = &cobra.Command{
	Use:          "examctl",
	Short:        "Exam timetable maintenance",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.toml", "configuration file")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

// scopeFlags adds --semester and --department to cmd.
func scopeFlags(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&semester, "semester", "s", 0, "limit to one semester (0 = all)")
	cmd.Flags().StringVarP(&department, "department", "d", "", "limit to one department")
}

func scope() app.Scope {
	return app.Scope{Semester: semester, Department: department}
}

// withService opens the configured service, runs fn and closes it.
func withService(fn func(ctx context.Context, svc *app.Service) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := app.NewService(cfgPath)
	if err != nil {
		return fmt.Errorf("load service: %w", err)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Error.Printf("service close: %v", err)
		}
	}()
	return fn(ctx, svc)
}
