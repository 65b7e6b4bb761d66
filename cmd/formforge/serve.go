package main

import (
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/faradid/formforge/internal/agent"
	"github.com/faradid/formforge/internal/api"
	"github.com/faradid/formforge/internal/db"
	"github.com/faradid/formforge/internal/executor"
	"github.com/faradid/formforge/internal/gemini"
	"github.com/faradid/formforge/internal/store"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "serve",
		Short:        "Run the formforge HTTP server",
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
			srv := api.NewServer(st, orch)

			log.Info().
				Str("addr", cfg.Server.Addr).
				Str("db", cfg.DB.Path).
				Str("model", cfg.Gemini.Model).
				Msg("listening")
			return http.ListenAndServe(cfg.Server.Addr, srv)
		},
	}
}
