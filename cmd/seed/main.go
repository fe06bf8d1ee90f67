package main

import (
	"flag"
	"log"

	"github.com/avoss/projectwarden/internal/config"
	"github.com/avoss/projectwarden/internal/db"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	minimal := flag.Bool("minimal", false, "seed the small fixed dataset instead of the full demo")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	database, err := db.NewDB(cfg)
	if err != nil {
		log.Fatalf("failed to init db: %v", err)
	}

	if *minimal {
		err = db.SeedMinimalTestData(database)
	} else {
		err = db.SeedTestData(database)
	}
	if err != nil {
		log.Fatalf("failed to seed: %v", err)
	}

	log.Println("Seeding completed.")
}
