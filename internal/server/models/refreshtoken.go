package models

import "time"

// RefreshToken backs one issued API token pair. The access JWT carries ID as
// its jti, so deleting the row revokes both tokens.
type RefreshToken struct {
	ID        string
	UserID    string
	Token     string
	Expires   time.Time
	CreatedAt time.Time
}
