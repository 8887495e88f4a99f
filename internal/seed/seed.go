// Package seed bootstraps an empty installation with a first admin account and the
// configured branch/store.
package seed

import (
	"context"
	"errors"
	"fmt"
	"strings"

	authdomain "github.com/smallbiznis/posreport/internal/auth/domain"
	"github.com/smallbiznis/posreport/internal/config"
	refdomain "github.com/smallbiznis/posreport/internal/reference/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const defaultAdminName = "Administrator"

type Params struct {
	fx.In

	Log       *zap.Logger
	Config    config.Config
	Auth      authdomain.Service
	Users     authdomain.UserRepository
	Reference refdomain.Repository
}

// Bootstrap is idempotent. The admin is created only while the users table is empty, so
// a deleted or renamed admin is never resurrected.
func Bootstrap(ctx context.Context, p Params) error {
	log := p.Log.Named("seed")
	boot := p.Config.Bootstrap

	if email := strings.TrimSpace(boot.AdminEmail); email != "" {
		n, err := p.Users.Count(ctx)
		if err != nil {
			return fmt.Errorf("count users: %w", err)
		}
		if n == 0 {
			if boot.AdminPassword == "" {
				return errors.New("bootstrap admin password is required")
			}
			user, err := p.Auth.CreateUser(ctx, authdomain.CreateUserRequest{
				Email:    email,
				Name:     defaultAdminName,
				Password: boot.AdminPassword,
				Role:     authdomain.RoleAdmin,
			})
			if err != nil {
				return fmt.Errorf("create bootstrap admin: %w", err)
			}
			log.Info("bootstrap admin created", zap.String("user_id", user.ID.String()))
		}
	}

	branch := strings.TrimSpace(boot.Branch)
	store := strings.TrimSpace(boot.Store)
	if branch != "" && store != "" {
		if err := p.Reference.EnsureBranchStore(ctx, branch, store); err != nil {
			return fmt.Errorf("ensure branch/store: %w", err)
		}
	}
	return nil
}
