// migrate applies the embedded SQL migrations; run with go run ./cmd/migrate.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"carteira/cmd/internal/app"
	"carteira/cmd/internal/db"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	_ = godotenv.Load()

	dsn := app.EnvString("CARTEIRA_DATABASE_URL", "")
	if dsn == "" {
		fmt.Fprintln(os.Stderr, "CARTEIRA_DATABASE_URL is not set")
		os.Exit(1)
	}

	if err := db.Migrate(dsn, *direction); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}
