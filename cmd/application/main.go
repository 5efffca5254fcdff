package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"supplierhub_api/config"
	"supplierhub_api/internal/supplierhub/app"
	"supplierhub_api/pkg/dbconnect/postgres"
)

func main() {
	log.Printf("\nStarted app\n")

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment")
	}

	var cfg *config.AppConfig
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			log.Fatalf("Failed to load config %s: %v", path, err)
		}
		cfg = loaded
	} else {
		cfg = config.DefaultConfig()
	}

	connector := postgres.NewPgConnector(&cfg.Postgres)
	server := app.NewServer(connector, cfg)
	server.Run()
}
