// migrate-to-postgres copies the run ledger from SQLite to PostgreSQL.
//
// Usage:
//
//	go run ./cmd/migrate-to-postgres \
//	    -sqlite data/mazestep.db \
//	    -pg-host localhost \
//	    -pg-port 5432 \
//	    -pg-user mazestep \
//	    -pg-password mazestep \
//	    -pg-database mazestep
package main

import (
	"flag"
	"log"

	"github.com/lawnchairsociety/mazestep/internal/database"
)

func main() {
	sqlitePath := flag.String("sqlite", "data/mazestep.db", "Path to SQLite database")
	pgHost := flag.String("pg-host", "localhost", "PostgreSQL host")
	pgPort := flag.Int("pg-port", 5432, "PostgreSQL port")
	pgUser := flag.String("pg-user", "mazestep", "PostgreSQL user")
	pgPassword := flag.String("pg-password", "mazestep", "PostgreSQL password")
	pgDatabase := flag.String("pg-database", "mazestep", "PostgreSQL database name")
	pgSSLMode := flag.String("pg-sslmode", "disable", "PostgreSQL SSL mode")
	dryRun := flag.Bool("dry-run", false, "Show what would be migrated without making changes")
	flag.Parse()

	log.Println("Run ledger migration: SQLite to PostgreSQL")

	log.Printf("Opening SQLite database: %s", *sqlitePath)
	src, err := database.Open(*sqlitePath)
	if err != nil {
		log.Fatalf("Failed to open SQLite database: %v", err)
	}
	defer src.Close()

	pg := database.DefaultPostgresConfig()
	pg.Host = *pgHost
	pg.Port = *pgPort
	pg.User = *pgUser
	pg.Password = *pgPassword
	pg.Database = *pgDatabase
	pg.SSLMode = *pgSSLMode

	// Opening migrates the schema, so this also prepares a fresh database.
	log.Printf("Opening PostgreSQL database: %s@%s:%d/%s", pg.User, pg.Host, pg.Port, pg.Database)
	dst, err := database.OpenWithConfig(database.Config{
		Driver:   string(database.DialectPostgres),
		Postgres: pg,
	})
	if err != nil {
		log.Fatalf("Failed to open PostgreSQL database: %v", err)
	}
	defer dst.Close()

	if *dryRun {
		log.Println("DRY RUN MODE - No changes will be made")
	}

	copied, skipped, err := database.CopyRuns(src, dst, *dryRun)
	if err != nil {
		log.Fatalf("Failed to migrate runs: %v", err)
	}

	log.Printf("Migration complete: %d runs copied, %d already present", copied, skipped)
	if *dryRun {
		log.Println("(DRY RUN - No actual changes were made)")
	}
}
