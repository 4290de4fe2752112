package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/watchx/internal/models"
	"github.com/desertthunder/watchx/internal/repositories"
	"github.com/desertthunder/watchx/internal/server"
	"github.com/desertthunder/watchx/internal/shared"
	"github.com/desertthunder/watchx/internal/tasks"
	"github.com/urfave/cli/v3"
)

const defaultTokenTTL = server.DefaultTokenTTL

func (r *Runner) secret() ([]byte, error) {
	if r.config.Server.Secret == "" {
		return nil, fmt.Errorf("%w: server.secret must be set (or %s_SERVER_SECRET)", shared.ErrMissingConfig, shared.EnvPrefix)
	}
	return []byte(r.config.Server.Secret), nil
}

// UserCreate adds a user to the backend database and prints a token for it.
func (r *Runner) UserCreate(ctx context.Context, cmd *cli.Command) error {
	secret, err := r.secret()
	if err != nil {
		return err
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	user := models.NewUser(0, cmd.String("name"))
	if err := repositories.NewUserRepository(db).Create(user); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	token, err := server.SignToken(secret, user.ID(), user.Name(), cmd.Duration("ttl"))
	if err != nil {
		return err
	}

	r.logger.Info("user created", "id", user.ID(), "name", user.Name())
	r.writePlain("✓ Created user %s (%s)\n", user.Name(), user.ID())
	r.writePlainln("Token:")
	r.writePlain("%s\n", token)
	r.writePlainln("Set backend.token in your config (or %s_BACKEND_TOKEN) to this value.", shared.EnvPrefix)
	return nil
}

// UserToken issues a fresh token for an existing user.
func (r *Runner) UserToken(ctx context.Context, cmd *cli.Command) error {
	userID, err := userIDArg(cmd)
	if err != nil {
		return err
	}

	secret, err := r.secret()
	if err != nil {
		return err
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	user, err := repositories.NewUserRepository(db).Get(userID)
	if err != nil {
		return err
	}

	token, err := server.SignToken(secret, user.ID(), user.Name(), cmd.Duration("ttl"))
	if err != nil {
		return err
	}
	return r.writePlain("%s\n", token)
}

func userIDArg(cmd *cli.Command) (string, error) {
	userID := cmd.StringArg("user-id")
	if userID == "" {
		return "", fmt.Errorf("%w: user id is required", shared.ErrMissingArgument)
	}
	return userID, nil
}

// UserList prints every live user, optionally narrowed by --name.
func (r *Runner) UserList(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	users, err := repositories.NewUserRepository(db).List(map[string]any{"name": cmd.String("name")})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		type userView struct {
			ID        string `json:"id"`
			Sequence  int    `json:"sequence"`
			Name      string `json:"name"`
			CreatedAt string `json:"created_at"`
		}
		views := make([]userView, 0, len(users))
		for _, u := range users {
			views = append(views, userView{u.ID(), u.Sequence(), u.Name(), u.CreatedAt().Format(time.RFC3339)})
		}
		return r.writeJSON(views, cmd.Bool("pretty"))
	}

	if len(users) == 0 {
		return r.writePlain("No users yet. Create one with: watchx user create --name NAME\n")
	}
	r.writePlainHeader(fmt.Sprintf("Users (%d)", len(users)))
	for _, u := range users {
		r.writePlain("%d. %s\n   ID: %s\n", u.Sequence(), u.Name(), u.ID())
	}
	return nil
}

// UserRename updates a user's display name.
func (r *Runner) UserRename(ctx context.Context, cmd *cli.Command) error {
	userID, err := userIDArg(cmd)
	if err != nil {
		return err
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	repo := repositories.NewUserRepository(db)
	user, err := repo.Get(userID)
	if err != nil {
		return err
	}
	previous := user.Name()
	user.SetName(cmd.String("name"))
	if err := repo.Update(user); err != nil {
		return err
	}
	return r.writePlain("✓ Renamed %s → %s\n", previous, user.Name())
}

// UserDelete soft-deletes a user. Their records stay in place but their tokens no longer resolve.
func (r *Runner) UserDelete(ctx context.Context, cmd *cli.Command) error {
	userID, err := userIDArg(cmd)
	if err != nil {
		return err
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := repositories.NewUserRepository(db).Delete(userID); err != nil {
		return err
	}
	r.logger.Info("user deleted", "id", userID)
	return r.writePlain("✓ Deleted user %s\n", userID)
}

// Serve runs the watch-status backend until interrupted.
//
// Hydrated endpoints resolve content through the configured catalogs; when those cannot
// be built the server still runs and answers them with 503.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	if cmd.Bool("migrate") {
		applied, err := shared.RunMigrations(db)
		if err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		if applied > 0 {
			r.logger.Info("applied migrations", "count", applied)
		}
	}

	opts := server.OptionsFromConfig(r.config, r.logger)
	if addr := cmd.String("addr"); addr != "" {
		opts.Addr = addr
	}

	var details tasks.DetailsFetcher
	client, release, err := r.catalogClient()
	if err != nil {
		r.logger.Warn("catalogs unavailable, hydrated endpoints will answer 503", "error", err)
	} else {
		defer release()
		details = client
	}

	srv, err := server.New(db, details, opts)
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}
