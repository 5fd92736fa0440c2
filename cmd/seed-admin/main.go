// seed-admin creates the platform admin user if it does not exist yet.
//
// Usage (from backend directory):
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//	ADMIN_USERNAME=... ADMIN_PASSWORD=... go run ./cmd/seed-admin
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/commerce_backend/config"
	"bitbucket.org/mmdatafocus/commerce_backend/models"
	"bitbucket.org/mmdatafocus/commerce_backend/utils"
)

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func main() {
	username := envOr("ADMIN_USERNAME", "admin")
	name := envOr("ADMIN_NAME", "Platform Admin")
	password := os.Getenv("ADMIN_PASSWORD")
	if len(password) < 8 {
		fmt.Fprintln(os.Stderr, "ADMIN_PASSWORD must be set to at least 8 characters")
		os.Exit(2)
	}

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	// users are not store scoped; run as admin so history hooks accept the write
	ctx := utils.SetIsAdminInContext(context.Background(), true)
	ctx = utils.SetSkipTenantScopeInContext(ctx, true)
	ctx = utils.SetUserIdInContext(ctx, 0)
	ctx = utils.SetUserNameInContext(ctx, "Seed")

	user, created, err := models.EnsureAdminUser(ctx, username, name, password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to seed admin user: %v\n", err)
		os.Exit(1)
	}
	if !created {
		fmt.Printf("Admin user already exists: username=%q role=%s\n", user.Username, user.Role)
		return
	}
	fmt.Printf("Created admin user: username=%q\n", user.Username)
}
