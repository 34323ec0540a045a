package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pushit/marketplace/internal/config"
	"github.com/pushit/marketplace/internal/db"
	"github.com/pushit/marketplace/internal/repositories"
	"go.uber.org/zap"
)

// admin promotes existing accounts to the admin role. With no arguments
// it promotes every address in ADMIN_EMAILS.
//
//	admin [email ...]
func main() {
	os.Exit(run())
}

func run() int {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	emails := os.Args[1:]
	if len(emails) == 0 {
		emails = cfg.AdminEmails
	}
	if len(emails) == 0 {
		fmt.Fprintln(os.Stderr, "usage: admin email [email ...] (or set ADMIN_EMAILS)")
		return 2
	}

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Error("failed to connect to postgres", zap.Error(err))
		return 1
	}
	defer pool.Close()

	users := repositories.NewUserRepo(pool)
	failed := false
	for _, email := range emails {
		promoted, err := users.PromoteToAdmin(ctx, email)
		switch {
		case err != nil:
			log.Error("promotion failed", zap.String("email", email), zap.Error(err))
			failed = true
		case promoted:
			log.Info("promoted to admin", zap.String("email", email))
		default:
			log.Warn("no account to promote", zap.String("email", email))
		}
	}
	if failed {
		return 1
	}
	return 0
}
