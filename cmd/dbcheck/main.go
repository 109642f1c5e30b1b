// Command dbcheck connects to the configured database and prints request
// counts per status.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"linky/internal/config"

	"github.com/jackc/pgx/v5"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, cfg.Database.ConnectionString())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close(ctx)

	var dbName string
	if err := conn.QueryRow(ctx, "SELECT current_database()").Scan(&dbName); err != nil {
		fmt.Fprintf(os.Stderr, "QueryRow failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Successfully connected to database: %s\n", dbName)

	var version int64
	if err := conn.QueryRow(ctx, "SELECT COALESCE(MAX(version_id), 0) FROM goose_db_version WHERE is_applied").Scan(&version); err != nil {
		fmt.Fprintf(os.Stderr, "Schema not migrated: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Schema version: %d\n", version)

	rows, err := conn.Query(ctx, "SELECT status, payment_status, COUNT(*) FROM requests GROUP BY status, payment_status ORDER BY status")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
		os.Exit(1)
	}
	defer rows.Close()

	fmt.Println("\nRequests by status:")
	for rows.Next() {
		var status, payment string
		var n int64
		if err := rows.Scan(&status, &payment, &n); err != nil {
			fmt.Fprintf(os.Stderr, "Scan failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("  - %-15s %-8s %d\n", status, payment, n)
	}
	if err := rows.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Rows failed: %v\n", err)
		os.Exit(1)
	}
}
