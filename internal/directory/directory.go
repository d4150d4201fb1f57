// Package directory provides CRUD operations over the user collection.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/yayasanmisboel/QRcodeSiswa/internal/model"
	"github.com/yayasanmisboel/QRcodeSiswa/internal/storage"
)

// ErrNotFound is returned when no user matches the given id.
var ErrNotFound = errors.New("user not found")

// Directory reads and writes the user collection as a whole. It performs no
// atomic check-and-insert; email uniqueness on the creation path is the
// caller's responsibility.
type Directory struct {
	store storage.Store
}

// New creates a directory backed by the given store.
func New(store storage.Store) *Directory {
	return &Directory{store: store}
}

// List returns all users in stored order. An absent collection reads as empty.
func (d *Directory) List(ctx context.Context) ([]model.User, error) {
	data, err := d.store.Get(ctx, storage.KeyUsers)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return []model.User{}, nil
		}
		return nil, err
	}
	var users []model.User
	if err := storage.DecodeJSON(storage.KeyUsers, data, &users); err != nil {
		return nil, err
	}
	if users == nil {
		users = []model.User{}
	}
	return users, nil
}

// FindByID returns the user with the given id, or ErrNotFound.
func (d *Directory) FindByID(ctx context.Context, id string) (model.User, error) {
	users, err := d.List(ctx)
	if err != nil {
		return model.User{}, err
	}
	for _, u := range users {
		if u.ID == id {
			return u, nil
		}
	}
	return model.User{}, ErrNotFound
}

// ListByRole returns the subset of users with the given role.
func (d *Directory) ListByRole(ctx context.Context, role model.Role) ([]model.User, error) {
	users, err := d.List(ctx)
	if err != nil {
		return nil, err
	}
	out := []model.User{}
	for _, u := range users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}

// EmailTaken reports whether any user already holds the given email.
// Comparison is case-insensitive.
func (d *Directory) EmailTaken(ctx context.Context, email string) (bool, error) {
	users, err := d.List(ctx)
	if err != nil {
		return false, err
	}
	for _, u := range users {
		if strings.EqualFold(u.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

// Upsert replaces the user with the same id in place, or appends when no
// match exists. Every call rewrites the whole collection.
func (d *Directory) Upsert(ctx context.Context, user model.User) error {
	users, err := d.List(ctx)
	if err != nil {
		return err
	}
	replaced := false
	for i := range users {
		if users[i].ID == user.ID {
			users[i] = user
			replaced = true
			break
		}
	}
	if !replaced {
		users = append(users, user)
	}
	data, err := json.Marshal(users)
	if err != nil {
		return fmt.Errorf("encode users: %w", err)
	}
	return d.store.Set(ctx, storage.KeyUsers, data)
}
