// Package domain contains core business types and interfaces.
//
// This file defines the User domain type and related types for authentication.
// These types are separate from the repository models so the database layer
// can change without touching business logic.
package domain

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// User is a registered ResumeZen account.
type User struct {
	ID               uuid.UUID `json:"id"`
	Email            string    `json:"email"`
	PasswordHash     string    `json:"-"`
	Name             string    `json:"name"`
	StripeCustomerID string    `json:"-"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// DisplayName returns the user's name or email if name is empty.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// Session represents an authenticated session.
//
// Sessions are stored in the database with a hashed token.
// The raw token is only given to the client once (at login).
type Session struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string // SHA-256 hash of the session token
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired returns true if the session has expired.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// RegisterParams contains the validated parameters for user registration.
type RegisterParams struct {
	Email    string
	Password string // Raw password, will be hashed by service
	Name     string
}

// LoginResult contains the result of a successful login.
type LoginResult struct {
	User  *User
	Token string // Raw session token (not hashed), only returned once
}

// =============================================================================
// Conversion helpers from repository types
// =============================================================================

// NullStringValue safely extracts a string from sql.NullString.
func NullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// NullTimeValue safely extracts a time pointer from sql.NullTime.
func NullTimeValue(nt sql.NullTime) *time.Time {
	if nt.Valid {
		t := nt.Time
		return &t
	}
	return nil
}

// ToNullString converts a string to sql.NullString.
func ToNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

// ToNullTime converts a time pointer to sql.NullTime.
func ToNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{Valid: false}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// ToNullUUID converts a uuid pointer to uuid.NullUUID.
func ToNullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{Valid: false}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

// NullUUIDValue extracts a uuid pointer from uuid.NullUUID.
func NullUUIDValue(id uuid.NullUUID) *uuid.UUID {
	if !id.Valid {
		return nil
	}
	v := id.UUID
	return &v
}
