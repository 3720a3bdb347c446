package models

import "github.com/uptrace/bun"

// User directory record, read-only to the core.
type User struct {
	bun.BaseModel `bun:"table:users"`

	ID          string `bun:"user_id,pk" json:"user_id"`
	FullName    string `bun:"full_name" json:"full_name"`
	Email       string `bun:"email,nullzero" json:"email,omitempty"`
	PhoneNumber string `bun:"phone_number,nullzero" json:"phone_number,omitempty"`
}
