package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"gwi.com/support-chatbot/internal/api"
	"gwi.com/support-chatbot/internal/auth"
	"gwi.com/support-chatbot/internal/core"
	"gwi.com/support-chatbot/internal/watcher"
)

func (c *cli) newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API (and the inbox watcher when INBOX_DIR is set)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.serve(cmd.Context())
		},
	}
}

func (c *cli) serve(parent context.Context) error {
	cfg := c.cfg
	if err := cfg.RequireJWTSecret(); err != nil {
		return err
	}
	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret, auth.DefaultTokenTTL)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	comps, err := openComponents(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer comps.Close()

	if tenants, err := comps.vectors.Tenants(); err != nil {
		log.Printf("Could not list vector index tenants: %v", err)
	} else {
		log.Printf("Vector index %s holds %d tenant namespaces", cfg.VectorDBPath, len(tenants))
	}

	ragService := core.NewRAGService(comps.vectors, comps.llm, cfg.RAG)
	chatService := core.NewChatService(comps.db, ragService, cfg.RAG.HistoryTurns)
	analyticsService := core.NewAnalyticsService(comps.db)

	apiHandler := api.NewAPIHandler(chatService, comps.documents, analyticsService, tokens, cfg.RAG.MaxUploadBytes)
	router := api.NewRouter(apiHandler)

	watchDone := make(chan struct{})
	if cfg.InboxDir != "" {
		inbox, err := watcher.NewInbox(cfg.InboxDir, comps.documents, watcher.DefaultDebounce)
		if err != nil {
			return err
		}
		go func() {
			defer close(watchDone)
			if err := inbox.Run(ctx); err != nil {
				log.Printf("Inbox watcher stopped: %v", err)
			}
		}()
	} else {
		close(watchDone)
	}

	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RAG.GenerationTimeout + cfg.RAG.SearchTimeout + 15*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("Starting server on %s. Press Ctrl+C to quit.", serverAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("could not listen on %s: %w", serverAddr, err)
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		stop()
		<-watchDone
		return err
	case <-ctx.Done():
	}
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	<-watchDone
	log.Println("Server exiting gracefully")
	return nil
}
