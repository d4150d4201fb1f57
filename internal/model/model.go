package model

// Role classifies a registered user.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleStudent:
		return true
	}
	return false
}

// CanScan reports whether the role is allowed to operate the scanner.
func (r Role) CanScan() bool {
	return r == RoleAdmin || r == RoleTeacher
}

// Status classifies a single attendance entry.
type Status string

const (
	StatusPresent Status = "present"
	StatusExcused Status = "excused"
	StatusSick    Status = "sick"
	StatusAbsent  Status = "absent"
)

// User is a registered account. The password is stored in the clear; the
// system deliberately carries no credential hardening.
type User struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	Role         Role   `json:"role"`
	ProfileImage string `json:"profileImage,omitempty"` // data URI
	QRCode       string `json:"qrCode"`                 // scannable payload, equals ID
	CreatedAt    int64  `json:"createdAt"`              // epoch milliseconds
}

// AttendanceRecord is one append-only attendance entry. The user fields are
// a snapshot taken at scan time; later edits to the user do not touch them.
type AttendanceRecord struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	UserRole  Role   `json:"userRole"`
	Timestamp int64  `json:"timestamp"` // epoch milliseconds
	Status    Status `json:"status"`
	ScannedBy string `json:"scannedBy,omitempty"`
	Notes     string `json:"notes,omitempty"`
}
