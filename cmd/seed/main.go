package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/wiradharma/go-auth-backend/config"
	"github.com/wiradharma/go-auth-backend/pkg/helpers"
)

// Seeds an initial admin account for local development.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := sql.Open("pgx", cfg.PostgresDSN())
	if err != nil {
		log.Fatalf("failed to open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	email := getenv("SEED_ADMIN_EMAIL", "admin@example.com")
	username := getenv("SEED_ADMIN_USERNAME", "admin")
	name := getenv("SEED_ADMIN_NAME", "Administrator")
	password := getenv("SEED_ADMIN_PASSWORD", "changeme123")

	hash, err := helpers.HashPassword(password)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	var id string
	err = db.QueryRow(`
		INSERT INTO users (name, username, email, password_hash, role)
		VALUES ($1, $2, $3, $4, 'admin')
		ON CONFLICT (email) DO UPDATE SET name = EXCLUDED.name, role = 'admin'
		RETURNING id
	`, name, username, email, hash).Scan(&id)
	if err != nil {
		log.Fatalf("failed to seed admin: %v", err)
	}
	fmt.Printf("seeded admin: id=%s email=%s username=%s\n", id, email, username)
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
