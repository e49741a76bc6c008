package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"saintagent/internal/agent"
	"saintagent/internal/api"
	"saintagent/internal/notify"
	"saintagent/internal/scheduler"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, session sweeper and scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := buildApp(cfg)
		if err != nil {
			return err
		}
		defer a.st.Close()

		model, err := agent.NewGeminiModel(ctx, cfg.Model.APIKey, cfg.Model.Model)
		if err != nil {
			return err
		}
		loop := agent.New(agent.Config{MaxRounds: cfg.Model.MaxRounds}, model, a.st)
		server := api.NewServer(loop, a.st, a.registryFor)

		go a.sessions.RunSweeper(ctx, cfg.GetSweepInterval())
		go a.kb.RunRefresher(ctx, time.Hour)

		dispatcher := notify.NewDispatcher(a.st, a.notifier)
		if cfg.Scheduler.Enabled {
			sched := scheduler.New(scheduler.Config{TickInterval: cfg.GetTickInterval()}, a.st, a.tasks, dispatcher)
			go sched.Run(ctx)
		}

		httpSrv := &http.Server{
			Addr:              serveAddr,
			Handler:           server,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			_ = httpSrv.Shutdown(shutdownCtx)
			a.sessions.Shutdown(shutdownCtx)
		}()

		logger.Info("saintagent serving", zap.String("addr", serveAddr))
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		logger.Info("saintagent stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8400", "listen address")
}
