package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/axiom-software-co/international-center-aspire-sub004/internal/httpserver"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read-only ops endpoints (health, status, metrics)",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.close()

		mon, err := a.monitor()
		if err != nil {
			return err
		}
		server := httpserver.New(a.reg, a.prov, mon)

		httpServer := &http.Server{
			Addr:    a.cfg.ListenAddr,
			Handler: server.Router(),
		}

		errCh := make(chan error, 1)
		go func() {
			log.Printf("migrator ops server listening on %s", a.cfg.ListenAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}()

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		select {
		case err := <-errCh:
			return err
		case <-stop:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
