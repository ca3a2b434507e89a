package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/nexconsult/adres-api/internal/app"
	"github.com/nexconsult/adres-api/internal/config"
	"github.com/nexconsult/adres-api/internal/logger"
)

// @title ADRES BDUA Consultation API
// @version 1.0
// @description Looks up health-system affiliation (EPS) in the ADRES BDUA portal by document type and number.

// @contact.name API Support

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logger.New(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting ADRES API Server...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Serve(ctx, cfg, logger); err != nil {
		logger.Fatalf("Server failed: %v", err)
	}
}
