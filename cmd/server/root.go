package main

import (
	"log"

	"github.com/spf13/cobra"

	"gwi.com/support-chatbot/internal/config"
)

// cli carries the configuration loaded once before any subcommand runs.
type cli struct {
	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:          "server",
		Short:        "Multi-tenant support chatbot backed by retrieval-augmented generation",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			c.cfg = cfg

			log.SetFlags(log.LstdFlags | log.Lshortfile)
			if cfg.Debug() {
				log.Println("Running in DEBUG mode")
			}
			return nil
		},
	}

	root.AddCommand(c.newServeCmd(), c.newIngestCmd(), c.newTokenCmd())
	return root
}
