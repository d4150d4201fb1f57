package auth

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/yayasanmisboel/QRcodeSiswa/internal/directory"
	"github.com/yayasanmisboel/QRcodeSiswa/internal/model"
	"github.com/yayasanmisboel/QRcodeSiswa/internal/session"
	"github.com/yayasanmisboel/QRcodeSiswa/internal/storage"
)

func newService() (*Service, *directory.Directory, *session.Holder) {
	st := storage.NewMemory()
	dir := directory.New(st)
	sessions := session.New(st)
	return New(dir, sessions), dir, sessions
}

func TestRegisterFindRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc, dir, _ := newService()

	user, err := svc.Register(ctx, RegisterInput{
		Name:     "Alice",
		Email:    "alice@example.com",
		Password: "secret",
		Role:     model.RoleStudent,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.ID == "" || user.QRCode != user.ID {
		t.Fatalf("user = %+v, want qrCode equal to id", user)
	}
	if user.CreatedAt == 0 {
		t.Fatal("createdAt not assigned")
	}

	got, err := dir.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !reflect.DeepEqual(got, user) {
		t.Fatalf("got %+v, want %+v", got, user)
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	svc, dir, _ := newService()

	if _, err := svc.Register(ctx, RegisterInput{
		Name: "Alice", Email: "alice@example.com", Password: "one", Role: model.RoleStudent,
	}); err != nil {
		t.Fatal(err)
	}

	// Same email, everything else different, including case.
	_, err := svc.Register(ctx, RegisterInput{
		Name: "Bob", Email: "ALICE@example.com", Password: "two", Role: model.RoleTeacher,
	})
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	users, _ := dir.List(ctx)
	if len(users) != 1 {
		t.Fatalf("users = %d, want 1 (rejected before any write)", len(users))
	}
}

func TestRegisterRejectsInvalidRole(t *testing.T) {
	svc, _, _ := newService()
	_, err := svc.Register(context.Background(), RegisterInput{
		Name: "X", Email: "x@example.com", Password: "p", Role: model.Role("headmaster"),
	})
	if !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestRegisterImageValidation(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService()

	// Not a data URI.
	_, err := svc.Register(ctx, RegisterInput{
		Name: "X", Email: "x1@example.com", Password: "p", Role: model.RoleStudent,
		ProfileImage: "http://example.com/photo.png",
	})
	if !errors.Is(err, ErrInvalidImage) {
		t.Fatalf("expected ErrInvalidImage for non data URI, got %v", err)
	}

	// Over the cap.
	huge := "data:image/png;base64," + strings.Repeat("A", DefaultMaxImageBytes)
	_, err = svc.Register(ctx, RegisterInput{
		Name: "X", Email: "x2@example.com", Password: "p", Role: model.RoleStudent,
		ProfileImage: huge,
	})
	if !errors.Is(err, ErrInvalidImage) {
		t.Fatalf("expected ErrInvalidImage for oversized image, got %v", err)
	}

	// Small data URI is accepted.
	user, err := svc.Register(ctx, RegisterInput{
		Name: "X", Email: "x3@example.com", Password: "p", Role: model.RoleStudent,
		ProfileImage: "data:image/png;base64,iVBORw0KGgo=",
	})
	if err != nil {
		t.Fatalf("register with image: %v", err)
	}
	if user.ProfileImage == "" {
		t.Fatal("profile image dropped")
	}
}

func TestLoginOpensSession(t *testing.T) {
	ctx := context.Background()
	svc, _, sessions := newService()

	created, err := svc.Register(ctx, RegisterInput{
		Name: "Alice", Email: "alice@example.com", Password: "secret", Role: model.RoleTeacher,
	})
	if err != nil {
		t.Fatal(err)
	}

	user, err := svc.Login(ctx, "alice@example.com", "secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.ID != created.ID {
		t.Fatalf("logged in as %q, want %q", user.ID, created.ID)
	}

	current, err := sessions.Current(ctx)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if !reflect.DeepEqual(current, created) {
		t.Fatalf("session user = %+v, want %+v", current, created)
	}
}

func TestLoginUniformFailure(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService()

	if _, err := svc.Register(ctx, RegisterInput{
		Name: "Alice", Email: "alice@example.com", Password: "secret", Role: model.RoleStudent,
	}); err != nil {
		t.Fatal(err)
	}

	// Unknown email and wrong password yield the same error.
	_, errUnknown := svc.Login(ctx, "nobody@example.com", "secret")
	_, errWrong := svc.Login(ctx, "alice@example.com", "wrong")
	if !errors.Is(errUnknown, ErrInvalidCredentials) || !errors.Is(errWrong, ErrInvalidCredentials) {
		t.Fatalf("errors = %v / %v, want uniform ErrInvalidCredentials", errUnknown, errWrong)
	}
	if errUnknown.Error() != errWrong.Error() {
		t.Fatal("login failures must be indistinguishable")
	}
}

func TestLogoutClearsSession(t *testing.T) {
	ctx := context.Background()
	svc, _, sessions := newService()

	if _, err := svc.Register(ctx, RegisterInput{
		Name: "Alice", Email: "alice@example.com", Password: "secret", Role: model.RoleAdmin,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Login(ctx, "alice@example.com", "secret"); err != nil {
		t.Fatal(err)
	}
	if err := svc.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := sessions.Current(ctx); !errors.Is(err, session.ErrNoSession) {
		t.Fatalf("expected cleared session, got %v", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	svc, dir, sessions := newService()

	created, err := svc.Register(ctx, RegisterInput{
		Name: "Alice", Email: "alice@example.com", Password: "secret", Role: model.RoleStudent,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Register(ctx, RegisterInput{
		Name: "Bob", Email: "bob@example.com", Password: "secret", Role: model.RoleStudent,
	}); err != nil {
		t.Fatal(err)
	}

	// Taking another user's email is rejected.
	if _, err := svc.UpdateProfile(ctx, created.ID, "", "bob@example.com", "", ""); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	updated, err := svc.UpdateProfile(ctx, created.ID, "Alicia", "alicia@example.com", "", "")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Alicia" || updated.Email != "alicia@example.com" {
		t.Fatalf("updated = %+v", updated)
	}
	// Immutable fields untouched.
	if updated.ID != created.ID || updated.Role != created.Role || updated.CreatedAt != created.CreatedAt {
		t.Fatalf("immutable fields changed: %+v", updated)
	}

	got, _ := dir.FindByID(ctx, created.ID)
	if !reflect.DeepEqual(got, updated) {
		t.Fatalf("persisted %+v, want %+v", got, updated)
	}

	// Editing the logged-in user refreshes the session snapshot.
	if _, err := svc.Login(ctx, "alicia@example.com", "secret"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.UpdateProfile(ctx, created.ID, "Alicia R", "", "", ""); err != nil {
		t.Fatal(err)
	}
	current, _ := sessions.Current(ctx)
	if current.Name != "Alicia R" {
		t.Fatalf("session name = %q, want refreshed", current.Name)
	}
}
