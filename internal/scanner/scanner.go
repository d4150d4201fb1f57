// Package scanner models the scan-to-record pipeline as an explicit state
// machine, independent of any transport or UI.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/yayasanmisboel/QRcodeSiswa/internal/directory"
	"github.com/yayasanmisboel/QRcodeSiswa/internal/ledger"
	"github.com/yayasanmisboel/QRcodeSiswa/internal/model"
	"github.com/yayasanmisboel/QRcodeSiswa/internal/session"
)

// State is the pipeline position for the current subject.
type State int

const (
	// StateScanning awaits a decoded payload.
	StateScanning State = iota
	// StateRecorded holds a written record until the operator resets.
	StateRecorded
	// StateError holds a surfaced failure until the operator resets.
	StateError
)

// String returns the wire name of the state.
func (s State) String() string {
	switch s {
	case StateScanning:
		return "scanning"
	case StateRecorded:
		return "recorded"
	case StateError:
		return "error"
	}
	return "unknown"
}

// Event is an input to the pipeline.
type Event interface{ isEvent() }

// Decoded carries a payload read off a QR code.
type Decoded struct{ Payload string }

// CameraError reports a device failure. It bypasses identity resolution.
type CameraError struct{ Message string }

// Reset returns the pipeline to Scanning for the next subject.
type Reset struct{}

func (Decoded) isEvent()     {}
func (CameraError) isEvent() {}
func (Reset) isEvent()       {}

// Result is what a completed scan surfaces to the caller.
type Result struct {
	User   model.User
	Record model.AttendanceRecord
}

// Scanner drives one scan session at a time. Decode events arriving outside
// the Scanning state are dropped, so a still-visible code cannot be
// processed twice before the operator resets.
type Scanner struct {
	dir      *directory.Directory
	ledger   *ledger.Ledger
	sessions *session.Holder
	now      func() time.Time

	state   State
	result  *Result
	lastErr string
}

// New creates a scanner in the Scanning state.
func New(dir *directory.Directory, led *ledger.Ledger, sessions *session.Holder) *Scanner {
	return &Scanner{dir: dir, ledger: led, sessions: sessions, now: time.Now}
}

// State returns the current pipeline state.
func (s *Scanner) State() State { return s.state }

// Result returns the surfaced user and record after a successful scan.
func (s *Scanner) Result() (Result, bool) {
	if s.result == nil {
		return Result{}, false
	}
	return *s.result, true
}

// ErrMessage returns the surfaced failure message in the Error state.
func (s *Scanner) ErrMessage() string { return s.lastErr }

// Handle applies one event and returns the resulting state. Storage faults
// during resolution or append surface through the Error state like any
// other scan failure.
func (s *Scanner) Handle(ctx context.Context, ev Event) State {
	switch ev := ev.(type) {
	case Decoded:
		s.handleDecoded(ctx, ev.Payload)
	case CameraError:
		s.state = StateError
		s.result = nil
		s.lastErr = "camera error: " + ev.Message
	case Reset:
		s.state = StateScanning
		s.result = nil
		s.lastErr = ""
	}
	return s.state
}

func (s *Scanner) handleDecoded(ctx context.Context, payload string) {
	if s.state != StateScanning {
		return
	}
	payload = strings.TrimSpace(payload)
	if payload == "" {
		// Malformed or empty payload: ignored, no transition.
		return
	}

	user, err := s.dir.FindByID(ctx, payload)
	if err != nil {
		s.state = StateError
		if errors.Is(err, directory.ErrNotFound) {
			s.lastErr = "user not found, invalid QR code"
		} else {
			s.lastErr = fmt.Sprintf("lookup failed: %v", err)
		}
		return
	}

	record := s.buildRecord(ctx, user)
	if err := s.ledger.Append(ctx, record); err != nil {
		s.state = StateError
		s.lastErr = fmt.Sprintf("record attendance failed: %v", err)
		return
	}

	s.state = StateRecorded
	s.result = &Result{User: user, Record: record}
}

// buildRecord snapshots the identified user and the scanning operator.
// Operator identity is denormalized at scan time and never revalidated.
func (s *Scanner) buildRecord(ctx context.Context, user model.User) model.AttendanceRecord {
	now := s.now()
	record := model.AttendanceRecord{
		ID:        strconv.FormatInt(now.UnixMilli(), 10),
		UserID:    user.ID,
		UserName:  user.Name,
		UserRole:  user.Role,
		Timestamp: now.UnixMilli(),
		Status:    model.StatusPresent,
		Notes:     "Attendance marked by system",
	}
	if operator, err := s.sessions.Current(ctx); err == nil {
		record.ScannedBy = operator.ID
		record.Notes = "Attendance marked by " + operator.Name
	}
	return record
}
