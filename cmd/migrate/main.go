package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"crashround/internal/database"

	_ "github.com/joho/godotenv/autoload"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	driver := getEnv("DB_DRIVER", database.DriverPostgres)
	dsn := getEnv("DB_PATH", "crash.db")
	if driver == database.DriverPostgres {
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s",
			getEnv("BLUEPRINT_DB_USERNAME", "postgres"),
			getEnv("BLUEPRINT_DB_PASSWORD", "postgres"),
			getEnv("BLUEPRINT_DB_HOST", "localhost"),
			getEnv("BLUEPRINT_DB_PORT", "5432"),
			getEnv("BLUEPRINT_DB_DATABASE", "crashdb"),
			getEnv("BLUEPRINT_DB_SCHEMA", "public"),
		)
	}

	// Empty means the migrations embedded in the binary
	migrationsPath := os.Getenv("MIGRATIONS_PATH")

	switch command {
	case "up":
		log.Println("Running migrations...")
		if err := database.RunMigrations(driver, dsn, migrationsPath); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("Migrations completed successfully")

	case "down":
		log.Println("Rolling back last migration...")
		if err := database.RollbackMigration(driver, dsn, migrationsPath); err != nil {
			log.Fatalf("Rollback failed: %v", err)
		}
		log.Println("Rollback completed successfully")

	case "version":
		version, dirty, err := database.GetMigrationVersion(driver, dsn, migrationsPath)
		if err != nil {
			log.Fatalf("Failed to get version: %v", err)
		}
		if dirty {
			log.Printf("Current version: %d (DIRTY - needs manual intervention)", version)
		} else {
			log.Printf("Current version: %d", version)
		}

	case "create":
		if len(os.Args) < 3 {
			log.Fatal("Usage: migrate create <migration_name>")
		}
		createMigration(getEnv("MIGRATIONS_PATH", "./internal/database/migrations/"+driver), os.Args[2])

	default:
		log.Printf("Unknown command: %s", command)
		printUsage()
		os.Exit(1)
	}
}

func createMigration(dir, name string) {
	files, err := os.ReadDir(dir)
	if err != nil {
		log.Fatalf("Failed to read migrations directory: %v", err)
	}

	count := 0
	for _, file := range files {
		if !file.IsDir() {
			count++
		}
	}
	nextVersion := count/2 + 1 // Each migration has up and down files

	upFile := fmt.Sprintf("%s/%06d_%s.up.sql", dir, nextVersion, name)
	downFile := fmt.Sprintf("%s/%06d_%s.down.sql", dir, nextVersion, name)

	upContent := fmt.Sprintf("-- Migration: %s\n-- Created: %s\n\n-- Add your SQL here\n", name, time.Now().Format(time.RFC3339))
	if err := os.WriteFile(upFile, []byte(upContent), 0644); err != nil {
		log.Fatalf("Failed to create up migration: %v", err)
	}
	downContent := fmt.Sprintf("-- Rollback: %s\n\n-- Add your rollback SQL here\n", name)
	if err := os.WriteFile(downFile, []byte(downContent), 0644); err != nil {
		log.Fatalf("Failed to create down migration: %v", err)
	}

	log.Printf("Created migration files:")
	log.Printf("   - %s", upFile)
	log.Printf("   - %s", downFile)
}

func printUsage() {
	fmt.Println("Database Migration Tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  migrate up              Run all pending migrations")
	fmt.Println("  migrate down            Rollback the last migration")
	fmt.Println("  migrate version         Show current migration version")
	fmt.Println("  migrate create <name>   Create a new migration file")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  DB_DRIVER               postgres or sqlite (default: postgres)")
	fmt.Println("  DB_PATH                 sqlite database file (default: crash.db)")
	fmt.Println("  BLUEPRINT_DB_HOST       Database host (default: localhost)")
	fmt.Println("  BLUEPRINT_DB_PORT       Database port (default: 5432)")
	fmt.Println("  BLUEPRINT_DB_DATABASE   Database name (default: crashdb)")
	fmt.Println("  BLUEPRINT_DB_USERNAME   Database user (default: postgres)")
	fmt.Println("  BLUEPRINT_DB_PASSWORD   Database password (default: postgres)")
	fmt.Println("  MIGRATIONS_PATH         Path to migrations (default: embedded)")
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
