// Command createuser registers an account from the terminal. It reads the
// same configuration as the server to reach the database.
package main

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/dmitrijs2005/beepdata/internal/logging"
	"github.com/dmitrijs2005/beepdata/internal/server/admin"
	"github.com/dmitrijs2005/beepdata/internal/server/config"
	"github.com/dmitrijs2005/beepdata/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/beepdata/internal/server/services"
)

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	cfg := config.LoadConfig()
	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}
	defer db.Close()

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		log.Fatalf("migrations error: %v", err)
	}

	users := services.NewUserService(db, rm, cfg, logger)
	u, err := admin.CreateUser(ctx, bufio.NewReader(os.Stdin), os.Stdout, users)
	if err != nil {
		log.Fatalf("create user: %v", err)
	}

	fmt.Printf("created user %s (id=%s)\n", u.UserName, u.ID)
}
