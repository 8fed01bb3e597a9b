package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/piyushgit011/image-process/config"
	"github.com/piyushgit011/image-process/internal/app"
)

func main() {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			log.Fatalf("config error: %s", err)
		}
	}

	cfg, err := config.New()
	if err != nil {
		log.Fatalf("config error: %s", err)
	}

	app.Run(cfg)
}
