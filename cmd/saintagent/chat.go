package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"saintagent/internal/agent"
	"saintagent/internal/browser"
)

var chatUserID int64

var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Send one message to the agent and print its reply",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

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

		model, err := agent.NewGeminiModel(ctx, cfg.Model.APIKey, cfg.Model.Model)
		if err != nil {
			return err
		}
		loop := agent.New(agent.Config{MaxRounds: cfg.Model.MaxRounds}, model, a.st)

		registry, err := a.registryFor(chatUserID)
		if err != nil {
			return err
		}

		message := strings.Join(args, " ")
		key := browser.UserKey(chatUserID)
		for ev := range loop.HandleMessage(ctx, key, registry, message) {
			switch ev.Type {
			case agent.EventToolStart:
				fmt.Printf("... %s\n", ev.Text)
			case agent.EventMessage:
				fmt.Println(ev.Text)
			case agent.EventError:
				fmt.Printf("error: %s\n", ev.Text)
			}
		}
		return nil
	},
}

func init() {
	chatCmd.Flags().Int64Var(&chatUserID, "user", 1, "user id owning the conversation")
}
