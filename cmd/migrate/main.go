package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/wolfman30/medtour-booking/internal/auth"
	appmigrations "github.com/wolfman30/medtour-booking/migrations"
)

const usage = `usage:
  migrate                       apply all pending migrations
  migrate down                  roll back the latest migration
  migrate force <version>       mark the schema as <version>
  migrate grant-admin <user-id> [role]`

func main() {
	_ = godotenv.Load()

	databaseURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if databaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	args := os.Args[1:]
	if len(args) > 0 && args[0] == "grant-admin" {
		if err := grantAdmin(context.Background(), databaseURL, args[1:]); err != nil {
			log.Fatal(err)
		}
		return
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		log.Fatalf("ping db: %v", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		log.Fatalf("db driver: %v", err)
	}

	srcDriver, err := iofs.New(appmigrations.FS, ".")
	if err != nil {
		log.Fatalf("source driver: %v", err)
	}

	m, err := migrate.NewWithInstance("iofs", srcDriver, "postgres", dbDriver)
	if err != nil {
		log.Fatalf("create migrator: %v", err)
	}
	defer func() { _, _ = m.Close() }()

	switch {
	case len(args) == 0:
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("migrate up: %v", err)
		}
		fmt.Println("migrations complete")
	case args[0] == "down":
		if err := m.Steps(-1); err != nil {
			log.Fatalf("migrate down: %v", err)
		}
		fmt.Println("rolled back one migration")
	case args[0] == "force" && len(args) == 2:
		version, err := strconv.Atoi(args[1])
		if err != nil {
			log.Fatalf("invalid version: %v", err)
		}
		if err := m.Force(version); err != nil {
			log.Fatalf("force version: %v", err)
		}
		fmt.Printf("forced version to %d\n", version)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
}

// parseGrantArgs returns the user id and role for grant-admin. The role
// defaults to ADMIN_ROLE or "admin".
func parseGrantArgs(args []string) (uuid.UUID, string, error) {
	if len(args) == 0 {
		return uuid.Nil, "", fmt.Errorf("grant-admin: user id is required\n%s", usage)
	}
	userID, err := uuid.Parse(strings.TrimSpace(args[0]))
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("grant-admin: invalid user id %q: %w", args[0], err)
	}
	role := strings.TrimSpace(os.Getenv("ADMIN_ROLE"))
	if len(args) > 1 && strings.TrimSpace(args[1]) != "" {
		role = strings.TrimSpace(args[1])
	}
	if role == "" {
		role = "admin"
	}
	return userID, role, nil
}

func grantAdmin(ctx context.Context, databaseURL string, args []string) error {
	userID, role, err := parseGrantArgs(args)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("grant-admin: connect: %w", err)
	}
	defer pool.Close()

	if err := auth.NewRoleStore(pool).Grant(ctx, userID, role); err != nil {
		return err
	}
	fmt.Printf("granted %s to %s\n", role, userID)
	return nil
}
