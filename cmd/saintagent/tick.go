package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"saintagent/internal/notify"
	"saintagent/internal/scheduler"
)

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run a single scheduler pass for the current minute",
	Long: `Runs one scheduling pass as if the minute ticker had fired, then
drains the notification outbox. Useful for testing schedules without
waiting for the clock.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cfg)
		if err != nil {
			return err
		}
		defer a.st.Close()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			a.sessions.Shutdown(shutdownCtx)
		}()

		dispatcher := notify.NewDispatcher(a.st, a.notifier)
		sched := scheduler.New(scheduler.Config{TickInterval: cfg.GetTickInterval()}, a.st, a.tasks, dispatcher)
		sched.Tick(cmd.Context())
		logger.Info("tick complete", zap.String("workspace", cfg.Workspace))
		return nil
	},
}
