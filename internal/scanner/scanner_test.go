package scanner

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/yayasanmisboel/QRcodeSiswa/internal/directory"
	"github.com/yayasanmisboel/QRcodeSiswa/internal/ledger"
	"github.com/yayasanmisboel/QRcodeSiswa/internal/model"
	"github.com/yayasanmisboel/QRcodeSiswa/internal/session"
	"github.com/yayasanmisboel/QRcodeSiswa/internal/storage"
)

type fixture struct {
	dir      *directory.Directory
	ledger   *ledger.Ledger
	sessions *session.Holder
	scan     *Scanner
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	st := storage.NewMemory()
	dir := directory.New(st)
	led := ledger.New(st)
	sessions := session.New(st)

	alice := model.User{
		ID:        "u1",
		Name:      "Alice",
		Email:     "alice@example.com",
		Password:  "secret",
		Role:      model.RoleStudent,
		QRCode:    "u1",
		CreatedAt: 1700000000000,
	}
	if err := dir.Upsert(context.Background(), alice); err != nil {
		t.Fatal(err)
	}
	return fixture{dir: dir, ledger: led, sessions: sessions, scan: New(dir, led, sessions)}
}

func TestScanKnownUserRecordsAttendance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	state := f.scan.Handle(ctx, Decoded{Payload: "u1"})
	if state != StateRecorded {
		t.Fatalf("state = %v, want Recorded", state)
	}

	res, ok := f.scan.Result()
	if !ok {
		t.Fatal("expected a surfaced result")
	}
	if res.User.ID != "u1" || res.User.Name != "Alice" {
		t.Fatalf("user = %+v", res.User)
	}

	all, err := f.ledger.All(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("records = %d, want 1", len(all))
	}
	rec := all[0]
	if rec.UserID != "u1" || rec.UserName != "Alice" || rec.UserRole != model.RoleStudent || rec.Status != model.StatusPresent {
		t.Fatalf("record = %+v", rec)
	}
	if rec.ScannedBy != "" {
		t.Fatalf("scannedBy = %q, want empty with no session", rec.ScannedBy)
	}
	if rec.Notes != "Attendance marked by system" {
		t.Fatalf("notes = %q", rec.Notes)
	}
}

func TestScanSnapshotsOperator(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	operator := model.User{ID: "t1", Name: "Pak Budi", Role: model.RoleTeacher}
	if err := f.sessions.SetCurrent(ctx, operator); err != nil {
		t.Fatal(err)
	}

	if state := f.scan.Handle(ctx, Decoded{Payload: "u1"}); state != StateRecorded {
		t.Fatalf("state = %v, want Recorded", state)
	}
	all, _ := f.ledger.All(ctx)
	if all[0].ScannedBy != "t1" {
		t.Fatalf("scannedBy = %q, want t1", all[0].ScannedBy)
	}
	if all[0].Notes != "Attendance marked by Pak Budi" {
		t.Fatalf("notes = %q", all[0].Notes)
	}
}

func TestScanUnknownIDEntersErrorWithoutRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	state := f.scan.Handle(ctx, Decoded{Payload: "unknown-id"})
	if state != StateError {
		t.Fatalf("state = %v, want Error", state)
	}
	if msg := f.scan.ErrMessage(); !strings.Contains(msg, "not found") {
		t.Fatalf("error message = %q", msg)
	}
	all, _ := f.ledger.All(ctx)
	if len(all) != 0 {
		t.Fatalf("records = %d, want 0", len(all))
	}
}

func TestBlankPayloadIgnored(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for _, payload := range []string{"", "   ", "\n"} {
		if state := f.scan.Handle(ctx, Decoded{Payload: payload}); state != StateScanning {
			t.Fatalf("payload %q moved state to %v", payload, state)
		}
	}
	all, _ := f.ledger.All(ctx)
	if len(all) != 0 {
		t.Fatalf("records = %d, want 0", len(all))
	}
}

func TestDecodeIgnoredOutsideScanning(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// First decode records; a still-visible code firing again must not
	// produce a second record until the operator resets.
	f.scan.Handle(ctx, Decoded{Payload: "u1"})
	f.scan.Handle(ctx, Decoded{Payload: "u1"})

	all, _ := f.ledger.All(ctx)
	if len(all) != 1 {
		t.Fatalf("records = %d, want 1", len(all))
	}

	f.scan.Handle(ctx, Reset{})
	if f.scan.State() != StateScanning {
		t.Fatalf("state after reset = %v", f.scan.State())
	}
	f.scan.Handle(ctx, Decoded{Payload: "u1"})
	all, _ = f.ledger.All(ctx)
	if len(all) != 2 {
		t.Fatalf("records after reset = %d, want 2", len(all))
	}
}

func TestDecodeIgnoredInErrorState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.scan.Handle(ctx, Decoded{Payload: "unknown-id"})
	if f.scan.State() != StateError {
		t.Fatalf("state = %v", f.scan.State())
	}
	// Even a valid payload requires a manual reset first.
	f.scan.Handle(ctx, Decoded{Payload: "u1"})
	all, _ := f.ledger.All(ctx)
	if len(all) != 0 {
		t.Fatalf("records = %d, want 0", len(all))
	}
}

func TestCameraErrorBypassesResolution(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	state := f.scan.Handle(ctx, CameraError{Message: "permission denied"})
	if state != StateError {
		t.Fatalf("state = %v, want Error", state)
	}
	if msg := f.scan.ErrMessage(); !strings.Contains(msg, "camera error") {
		t.Fatalf("error message = %q", msg)
	}

	f.scan.Handle(ctx, Reset{})
	if f.scan.State() != StateScanning || f.scan.ErrMessage() != "" {
		t.Fatalf("reset did not clear error state: %v %q", f.scan.State(), f.scan.ErrMessage())
	}
}

func TestResetClearsSurfacedResult(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.scan.Handle(ctx, Decoded{Payload: "u1"})
	if _, ok := f.scan.Result(); !ok {
		t.Fatal("expected result after recording")
	}
	f.scan.Handle(ctx, Reset{})
	if _, ok := f.scan.Result(); ok {
		t.Fatal("result should be cleared by reset")
	}
}

func TestRecordTimestampIsTimeBased(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	fixed := time.Date(2026, time.March, 10, 8, 30, 0, 0, time.Local)
	f.scan.now = func() time.Time { return fixed }

	f.scan.Handle(ctx, Decoded{Payload: "u1"})
	all, _ := f.ledger.All(ctx)
	if all[0].Timestamp != fixed.UnixMilli() {
		t.Fatalf("timestamp = %d, want %d", all[0].Timestamp, fixed.UnixMilli())
	}
	if all[0].ID == "" {
		t.Fatal("record id must be assigned")
	}
}
