package main

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/faradid/formforge/internal/agent"
	"github.com/faradid/formforge/internal/db"
	"github.com/faradid/formforge/internal/executor"
	"github.com/faradid/formforge/internal/gemini"
	"github.com/faradid/formforge/internal/store"
)

func askCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:          "ask [text...]",
		Short:        "Run a single form-authoring request from the command line",
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			conn, err := db.Open(cfg.DB.Path)
			if err != nil {
				return err
			}
			defer func() {
				if err := conn.Close(); err != nil {
					log.Warn().Err(err).Msg("close database")
				}
			}()

			st := store.NewStore(conn)
			usage := &gemini.Usage{}
			gw, err := gemini.NewGateway(cfg.Gemini.APIKeys, cfg.Gemini.Model, cfg.Gemini.Temperature, usage)
			if err != nil {
				return err
			}
			orch := agent.New(gw, st, executor.New(st), usage)

			out := orch.Handle(cmd.Context(), userID, strings.Join(args, " "))
			fmt.Fprintln(cmd.OutOrStdout(), out.TextAnswer)
			if !out.Success {
				return fmt.Errorf("request failed: %s", out.Err)
			}
			log.Debug().
				Int("requests", out.Stats.Requests).
				Int("total_tokens", out.Stats.TotalTokens).
				Msg("gemini usage")
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "cli", "tenant user id")
	return cmd
}
