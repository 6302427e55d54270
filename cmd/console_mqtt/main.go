package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/wheel_arbiter/internal/app"
	"github.com/relabs-tech/wheel_arbiter/internal/config"
)

func main() {
	configPath := flag.String("config", "wheel_config.toml", "Path to configuration file")
	flag.Parse()

	log.Println("starting wheel console (MQTT subscriber)")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunConsoleMQTT(ctx); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
