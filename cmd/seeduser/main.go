// Creates or updates a user account directly in PostgreSQL. Meant for
// bootstrapping the first admin on a fresh database.
//
// Usage:
//
//	DATABASE_URL=postgres://... go run ./cmd/seeduser -username admin -password 'secret' -role admin -max-discount 100
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	username := flag.String("username", "admin", "account username")
	password := flag.String("password", "", "account password (required)")
	role := flag.String("role", "admin", "account role: admin or seller")
	maxDiscount := flag.String("max-discount", "100", "maximum discount percent the account may grant")
	flag.Parse()

	if *password == "" {
		log.Fatal("-password is required")
	}
	if *role != "admin" && *role != "seller" {
		log.Fatalf("invalid role %q: must be admin or seller", *role)
	}
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("bcrypt error: %v", err)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err = db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, max_discount, active, created_at)
		VALUES ($1, $2, $3, $4, true, $5)
		ON CONFLICT (username) DO UPDATE
		SET password = EXCLUDED.password,
		    role = EXCLUDED.role,
		    max_discount = EXCLUDED.max_discount,
		    active = true
	`, *username, string(hash), *role, *maxDiscount, time.Now().UTC())
	if err != nil {
		log.Fatalf("insert error: %v", err)
	}

	fmt.Printf("user %q created/updated\n", *username)
}
