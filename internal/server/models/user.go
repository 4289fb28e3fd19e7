// Package models defines server-side data models persisted in the database.
package models

import "time"

type User struct {
	ID           string
	UserName     string
	Email        string
	PasswordHash []byte
	CreatedAt    time.Time
}

// Column and hashing bounds for User fields. Usernames and emails are
// counted in characters, passwords in bytes (the bcrypt input limit).
const (
	MaxUserNameLength = 150
	MaxEmailLength    = 254
	MaxPasswordBytes  = 72
)
