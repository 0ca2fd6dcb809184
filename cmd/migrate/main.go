package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"

	"chat-relay/internal/database"

	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/manifold-inc/manifold-sdk/lib/eflag"
)

func main() {
	_ = godotenv.Load()
	dsn := flag.String("dsn", "", "MySQL DSN")
	migrationPath := flag.String("file", "migrations/create_daily_stats_table.sql", "Migration file")

	if err := eflag.SetFlagsFromEnvironment(); err != nil {
		panic(err)
	}
	flag.Parse()
	if *dsn == "" {
		fmt.Fprintln(os.Stderr, "Error: -dsn or DSN is required")
		os.Exit(1)
	}

	migrationSQL, err := os.ReadFile(*migrationPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading migration file %s: %v\n", *migrationPath, err)
		os.Exit(1)
	}

	db, err := sql.Open("mysql", *dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		fmt.Fprintf(os.Stderr, "Error pinging database: %v\n", err)
		os.Exit(1)
	}

	statements := database.SplitStatements(string(migrationSQL))
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			fmt.Fprintf(os.Stderr, "Error executing statement: %v\n", err)
			fmt.Fprintf(os.Stderr, "Statement: %s\n", stmt)
			os.Exit(1)
		}
	}
	fmt.Printf("Applied %d statements from %s\n", len(statements), *migrationPath)
}
