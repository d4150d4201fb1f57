// Package auth implements registration and login for the attendance app.
//
// Credentials are deliberately stored and compared in the clear: the system
// inherits the original's trust model and carries no hashing, tokens or
// lockout.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yayasanmisboel/QRcodeSiswa/internal/directory"
	"github.com/yayasanmisboel/QRcodeSiswa/internal/model"
	"github.com/yayasanmisboel/QRcodeSiswa/internal/session"
)

var (
	// ErrEmailTaken is returned when registering an already-used email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials is the uniform login failure; callers cannot
	// tell an unknown email from a wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrInvalidRole is returned for a role outside the known set.
	ErrInvalidRole = errors.New("invalid role")
	// ErrInvalidImage is returned for a profile image that is not a data
	// URI or exceeds the size cap.
	ErrInvalidImage = errors.New("profile image must be an image data URI within the size limit")
)

// DefaultMaxImageBytes caps the embedded profile image data URI.
const DefaultMaxImageBytes = 2 << 20

func nowMillis() int64 { return time.Now().UnixMilli() }

// Service coordinates the registration and login paths.
type Service struct {
	dir           *directory.Directory
	sessions      *session.Holder
	maxImageBytes int
	now           func() int64
}

// New creates a service with the default image cap.
func New(dir *directory.Directory, sessions *session.Holder) *Service {
	return &Service{
		dir:           dir,
		sessions:      sessions,
		maxImageBytes: DefaultMaxImageBytes,
		now:           nowMillis,
	}
}

// RegisterInput is the creation payload.
type RegisterInput struct {
	Name         string
	Email        string
	Password     string
	Role         model.Role
	ProfileImage string
}

// Register validates input, rejects duplicate emails before any write, and
// persists a new user whose QR payload equals its id.
func (s *Service) Register(ctx context.Context, in RegisterInput) (model.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	if in.Name == "" || in.Email == "" || in.Password == "" {
		return model.User{}, errors.New("name, email and password are required")
	}
	if !in.Role.Valid() {
		return model.User{}, ErrInvalidRole
	}
	if in.ProfileImage != "" {
		if !strings.HasPrefix(in.ProfileImage, "data:image/") || len(in.ProfileImage) > s.maxImageBytes {
			return model.User{}, ErrInvalidImage
		}
	}

	taken, err := s.dir.EmailTaken(ctx, in.Email)
	if err != nil {
		return model.User{}, err
	}
	if taken {
		return model.User{}, ErrEmailTaken
	}

	id := uuid.NewString()
	user := model.User{
		ID:           id,
		Name:         in.Name,
		Email:        in.Email,
		Password:     in.Password,
		Role:         in.Role,
		ProfileImage: in.ProfileImage,
		QRCode:       id,
		CreatedAt:    s.now(),
	}
	if err := s.dir.Upsert(ctx, user); err != nil {
		return model.User{}, err
	}
	return user, nil
}

// Login matches email and password by plain equality and, on success, makes
// the user the current session.
func (s *Service) Login(ctx context.Context, email, password string) (model.User, error) {
	users, err := s.dir.List(ctx)
	if err != nil {
		return model.User{}, err
	}
	for _, u := range users {
		if strings.EqualFold(u.Email, email) && u.Password == password {
			if err := s.sessions.SetCurrent(ctx, u); err != nil {
				return model.User{}, err
			}
			return u, nil
		}
	}
	return model.User{}, ErrInvalidCredentials
}

// Logout clears the session slot.
func (s *Service) Logout(ctx context.Context) error {
	return s.sessions.Clear(ctx)
}

// UpdateProfile applies mutable-field edits to an existing user. Identity,
// role and creation time never change.
func (s *Service) UpdateProfile(ctx context.Context, id, name, email, password, profileImage string) (model.User, error) {
	user, err := s.dir.FindByID(ctx, id)
	if err != nil {
		return model.User{}, err
	}
	if name = strings.TrimSpace(name); name != "" {
		user.Name = name
	}
	if email = strings.TrimSpace(email); email != "" && !strings.EqualFold(email, user.Email) {
		taken, err := s.dir.EmailTaken(ctx, email)
		if err != nil {
			return model.User{}, err
		}
		if taken {
			return model.User{}, ErrEmailTaken
		}
		user.Email = email
	}
	if password != "" {
		user.Password = password
	}
	if profileImage != "" {
		if !strings.HasPrefix(profileImage, "data:image/") || len(profileImage) > s.maxImageBytes {
			return model.User{}, ErrInvalidImage
		}
		user.ProfileImage = profileImage
	}
	if err := s.dir.Upsert(ctx, user); err != nil {
		return model.User{}, err
	}
	// Keep the session snapshot in step when the edited user is logged in.
	if current, err := s.sessions.Current(ctx); err == nil && current.ID == user.ID {
		if err := s.sessions.SetCurrent(ctx, user); err != nil {
			return model.User{}, err
		}
	}
	return user, nil
}
