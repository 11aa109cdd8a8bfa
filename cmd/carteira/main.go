package main

import (
	"log"

	"github.com/joho/godotenv"

	"carteira/cmd/internal/app"
)

func main() {
	// Missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
