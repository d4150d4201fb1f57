// Package session holds the single active-session user record.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/yayasanmisboel/QRcodeSiswa/internal/model"
	"github.com/yayasanmisboel/QRcodeSiswa/internal/storage"
)

// ErrNoSession is returned when no user is logged in.
var ErrNoSession = errors.New("no active session")

// Holder manages the single current-user slot. There is no expiry and no
// revalidation against the directory; absence of a session means
// unauthenticated.
type Holder struct {
	store storage.Store
}

// New creates a holder backed by the given store.
func New(store storage.Store) *Holder {
	return &Holder{store: store}
}

// Current returns the active session user, or ErrNoSession.
func (h *Holder) Current(ctx context.Context) (model.User, error) {
	data, err := h.store.Get(ctx, storage.KeyCurrentUser)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return model.User{}, ErrNoSession
		}
		return model.User{}, err
	}
	var user model.User
	if err := storage.DecodeJSON(storage.KeyCurrentUser, data, &user); err != nil {
		return model.User{}, err
	}
	return user, nil
}

// SetCurrent replaces the session slot with the given user.
func (h *Holder) SetCurrent(ctx context.Context, user model.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode session user: %w", err)
	}
	return h.store.Set(ctx, storage.KeyCurrentUser, data)
}

// Clear removes the session slot, leaving the system unauthenticated.
func (h *Holder) Clear(ctx context.Context) error {
	return h.store.Delete(ctx, storage.KeyCurrentUser)
}
