// Package identity resolves request-supplied identity hints to durable user IDs.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ashureev/lexrelay/internal/domain"
	"github.com/ashureev/lexrelay/internal/store"
)

// Resolver maps (explicit id | email | nothing) to a user ID, creating users on demand.
type Resolver struct {
	users store.UserStore
}

// NewResolver creates a resolver backed by the given user store.
func NewResolver(users store.UserStore) *Resolver {
	return &Resolver{users: users}
}

// ResolveOrCreate returns the user ID for the given hints.
//
// An explicit ID wins and is returned without validation. With an email the
// call is an idempotent upsert keyed on the email whose display name is last
// write wins. Otherwise a fresh anonymous user is created.
// Inputs are expected to be normalized with domain.OptionalText/OptionalEmail.
func (r *Resolver) ResolveOrCreate(ctx context.Context, name, email, explicitID *string) (string, error) {
	if explicitID != nil && *explicitID != "" {
		return *explicitID, nil
	}

	displayName := domain.DefaultUserName
	if name != nil && *name != "" {
		displayName = *name
	}

	if email != nil && *email != "" {
		return r.upsertByEmail(ctx, displayName, *email)
	}

	user := &domain.User{Name: displayName}
	if err := r.users.CreateUser(ctx, user); err != nil {
		return "", fmt.Errorf("create anonymous user: %w", err)
	}
	slog.Info("Created anonymous user", "user_id", user.ID)
	return user.ID, nil
}

func (r *Resolver) upsertByEmail(ctx context.Context, name, email string) (string, error) {
	existing, err := r.users.GetUserByEmail(ctx, email)
	if err == nil {
		return r.rename(ctx, existing, name)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return "", fmt.Errorf("lookup user by email: %w", err)
	}

	user := &domain.User{Name: name, Email: &email}
	err = r.users.CreateUser(ctx, user)
	if err == nil {
		slog.Info("Created user", "user_id", user.ID)
		return user.ID, nil
	}
	if !errors.Is(err, domain.ErrConflict) {
		return "", fmt.Errorf("create user: %w", err)
	}

	// Lost the race against a concurrent insert of the same email.
	existing, err = r.users.GetUserByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("refetch user after conflict: %w", err)
	}
	slog.Debug("User created concurrently, reusing record", "user_id", existing.ID)
	return r.rename(ctx, existing, name)
}

func (r *Resolver) rename(ctx context.Context, user *domain.User, name string) (string, error) {
	if user.Name == name {
		return user.ID, nil
	}
	if err := r.users.UpdateUserName(ctx, user.ID, name); err != nil {
		return "", fmt.Errorf("update user name: %w", err)
	}
	return user.ID, nil
}
