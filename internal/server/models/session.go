package models

import "time"

// Session is a server-side web login referenced by the sessionid cookie.
type Session struct {
	ID        string
	UserID    string
	Expires   time.Time
	CreatedAt time.Time
}

func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.Expires)
}
