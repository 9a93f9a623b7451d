package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/robobench/graspd/internal/infrastructure/config"
	"github.com/robobench/graspd/internal/infrastructure/server"
)

func main() {
	profilePath := flag.String("profile", "", "Path to YAML stream profile")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	profile := config.DefaultProfile()
	if *profilePath != "" {
		profile, err = config.LoadProfile(*profilePath)
		if err != nil {
			log.Fatalf("Failed to load stream profile: %v", err)
		}
	}

	srv, err := server.New(cfg, profile)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Run(); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-sigChan:
		if err := srv.Close(); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	case err := <-errChan:
		log.Fatalf("Server error: %v", err)
	}
}
