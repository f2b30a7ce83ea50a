package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/mailhook/internal/db"
)

func main() {
	_ = godotenv.Load()
	ctx := context.Background()

	direction := "up"
	if len(os.Args) > 1 {
		direction = os.Args[1]
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	database, err := db.Open(ctx, dbURL)
	if err != nil {
		slog.Error("failed to connect", "err", err)
		os.Exit(1)
	}
	defer database.Close()

	switch direction {
	case "up":
		err = database.Migrate()
	case "down":
		err = database.MigrateDown()
	default:
		slog.Error("unknown direction, want up or down", "direction", direction)
		os.Exit(2)
	}
	if err != nil {
		slog.Error("migration failed", "direction", direction, "err", err)
		database.Close()
		os.Exit(1)
	}

	fmt.Printf("migrations %s complete (%s)\n", direction, database.Dialect)
}
