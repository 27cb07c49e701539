package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	"github.com/fleettrack/telematics-be/internal/shared/config"
)

func main() {
	var module string
	var command string
	var dir string

	flag.StringVar(&module, "module", "fleet", "Module to migrate")
	flag.StringVar(&command, "cmd", "up", "Migration command (up, down, steps, version, force)")
	flag.StringVar(&dir, "dir", "migrations", "Root directory of the migration files")
	flag.Parse()

	cfg := config.LoadConfig()
	if cfg.DatabaseURL == "" {
		log.Fatal("❌ DATABASE_URL is not set")
	}

	migrationPath := fmt.Sprintf("file://%s/%s", dir, module)

	log.Printf("🔄 Running migrations for module: %s", module)
	log.Printf("📂 Migration path: %s", migrationPath)
	log.Printf("💾 Database: %s", maskDatabaseURL(cfg.DatabaseURL))

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Failed to open database: %v", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: "schema_migrations_" + module})
	if err != nil {
		log.Fatalf("❌ Failed to create migration driver: %v", err)
	}

	m, err := migrate.NewWithDatabaseInstance(migrationPath, "postgres", driver)
	if err != nil {
		log.Fatalf("❌ Failed to create migrate instance: %v", err)
	}
	defer m.Close()

	switch command {
	case "up":
		log.Println("⬆️  Running UP migrations...")
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("❌ Migration UP failed: %v", err)
		}
		log.Println("✅ Migrations UP completed!")

	case "down":
		log.Println("⬇️  Running DOWN migrations...")
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("❌ Migration DOWN failed: %v", err)
		}
		log.Println("✅ Migrations DOWN completed!")

	case "steps":
		n := requireIntArg("steps")
		if err := m.Steps(n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("❌ Migration steps failed: %v", err)
		}
		log.Printf("✅ Applied %d step(s)", n)

	case "version":
		version, dirty, err := m.Version()
		if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
			log.Fatalf("❌ Failed to get version: %v", err)
		}
		log.Printf("📌 Current version: %d (dirty: %t)", version, dirty)

	case "force":
		forceVersion := requireIntArg("force")
		if err := m.Force(forceVersion); err != nil {
			log.Fatalf("❌ Force failed: %v", err)
		}
		log.Printf("✅ Forced version to: %d", forceVersion)

	default:
		log.Fatalf("❌ Unknown command: %s (use: up, down, steps, version, force)", command)
	}
}

func requireIntArg(command string) int {
	if len(flag.Args()) < 1 {
		log.Fatalf("❌ Please provide a number for the %s command", command)
	}
	n, err := strconv.Atoi(flag.Arg(0))
	if err != nil {
		log.Fatalf("❌ Invalid number %q: %v", flag.Arg(0), err)
	}
	return n
}

// maskDatabaseURL hides password in database URL for logging
func maskDatabaseURL(url string) string {
	if len(url) < 20 {
		return "***"
	}
	return url[:20] + "***" + url[len(url)-10:]
}
