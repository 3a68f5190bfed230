package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackshadow-software/face-auth/internal/config"
	"github.com/blackshadow-software/face-auth/internal/identity"
	"github.com/blackshadow-software/face-auth/internal/web"
	"github.com/blackshadow-software/face-auth/internal/web/handlers"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the face authentication API server. The server exposes enrollment,
verification, and identity administration endpoints over HTTP.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (defaults to FACE_AUTH_ADDR or :8080)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	addr := mustGetString(cmd, "addr")
	if addr == "" {
		addr = cfg.Web.Addr
	}

	ctx := context.Background()
	reg, closer, err := openRegistry(ctx, cfg)
	if err != nil {
		return err
	}
	defer closer()

	fmt.Printf("Loaded %d identities (dimension %d)\n", reg.Count(), reg.Dimension())

	index := identity.NewSampleIndex()
	index.Rebuild(reg.Snapshot())
	fmt.Printf("Similarity index built with %d samples\n", index.Len())

	service := handlers.NewService(reg, newEnroller(cfg), newMatcher(cfg), index, newExtractor(cfg))
	server := web.NewServer(addr, service)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting face-auth API on %s\n", addr)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
