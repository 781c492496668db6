// Command grant registers a user in the directory and prints a bearer token
// for them.
//
//	grant -uid u1 -email ops@example.com -admin
//
// The directory entry is what the audit pipeline re-checks, so revoking
// admin here (-admin=false) takes effect for pending operations even while
// previously issued tokens still claim admin.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/Shivanand-hulikatti/hall-attendance/internal/config"
	"github.com/Shivanand-hulikatti/hall-attendance/internal/database"
	"github.com/Shivanand-hulikatti/hall-attendance/internal/identity"
	"github.com/Shivanand-hulikatti/hall-attendance/internal/model"
	"github.com/Shivanand-hulikatti/hall-attendance/internal/repository"
)

func main() {
	uid := flag.String("uid", "", "user id (token subject)")
	email := flag.String("email", "", "user email")
	admin := flag.Bool("admin", false, "grant administrator privilege")
	flag.Parse()

	if *uid == "" {
		fmt.Fprintln(os.Stderr, "grant: -uid is required")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	db, closeDB, err := database.OpenStore(ctx, cfg.StoreOptions())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer closeDB()

	users := repository.NewUserRepository(db)
	if err := users.Put(ctx, *uid, &model.User{Email: *email, IsAdmin: *admin}); err != nil {
		log.Fatalf("save user: %v", err)
	}

	token, err := identity.NewTokens(cfg.JWTSecret, cfg.JWTTTL).Issue(identity.Caller{
		UserID:  *uid,
		Email:   *email,
		IsAdmin: *admin,
	})
	if err != nil {
		log.Fatalf("issue token: %v", err)
	}
	fmt.Println(token)
}
