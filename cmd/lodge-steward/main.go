package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/dyluth/lodge/internal/config"
	"github.com/dyluth/lodge/internal/steward"
	"github.com/dyluth/lodge/pkg/registry"
)

func main() {
	// 1. Load environment variables
	instanceName := os.Getenv("LODGE_INSTANCE_NAME")
	redisURL := os.Getenv("REDIS_URL")
	workspaceDir := os.Getenv("LODGE_WORKSPACE")

	if instanceName == "" || redisURL == "" {
		fmt.Fprintf(os.Stderr, "Error: LODGE_INSTANCE_NAME and REDIS_URL must be set\n")
		os.Exit(1)
	}
	if workspaceDir == "" {
		workspaceDir = "/workspace"
	}

	// 2. Parse Redis URL
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Invalid REDIS_URL: %v\n", err)
		os.Exit(1)
	}

	// 3. Create registry client
	regClient, err := registry.NewClient(redisOpts, instanceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to create registry client: %v\n", err)
		os.Exit(1)
	}
	defer regClient.Close()

	// 4. Verify Redis connectivity
	ctx := context.Background()
	if err := regClient.Ping(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Redis not accessible: %v\n", err)
		os.Exit(1)
	}

	// 5. Load lodge.yml configuration from workspace
	cfg, err := config.Load(filepath.Join(workspaceDir, "lodge.yml"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to load lodge.yml: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Steward starting for instance '%s' with %d producers\n", instanceName, len(cfg.Producers))

	// 6. Create steward engine
	engine := steward.NewEngine(regClient, workspaceDir, cfg)

	// 7. Setup graceful shutdown
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	// 8. Start steward in goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- engine.Run(runCtx)
	}()

	// 9. Wait for shutdown signal or error
	select {
	case sig := <-sigCh:
		fmt.Printf("Received signal %v, shutting down gracefully...\n", sig)
		cancel()
		// Wait for engine to finish
		<-errCh
	case runErr := <-errCh:
		if runErr != nil {
			fmt.Fprintf(os.Stderr, "Steward error: %v\n", runErr)
			os.Exit(1)
		}
	}

	fmt.Println("Steward stopped")
}
