package core

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Session identifies the caller on whose behalf backend data is read. Token
// is the bearer token forwarded to the backend.
type Session struct {
	Subject   string
	Role      string
	Token     string
	ExpiresAt time.Time
}

func (s Session) IsAdmin() bool {
	return s.Role == RoleAdmin
}

// Expired reports whether the session carries an expiry that is not after now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}
