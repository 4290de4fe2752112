package models

import (
	"fmt"
	"strings"
	"time"
)

// User owns watch-status records on the reference backend.
type User struct {
	id        string
	sequence  int
	name      string
	createdAt time.Time
	updatedAt time.Time
	deletedAt *time.Time
}

// NewUser creates a [User] with timestamps set to now. The ID is assigned by the repository.
func NewUser(sequence int, name string) *User {
	now := time.Now()
	return &User{sequence: sequence, name: name, createdAt: now, updatedAt: now}
}

func (u *User) ID() string            { return u.id }
func (u *User) Sequence() int         { return u.sequence }
func (u *User) Name() string          { return u.name }
func (u *User) CreatedAt() time.Time  { return u.createdAt }
func (u *User) UpdatedAt() time.Time  { return u.updatedAt }
func (u *User) DeletedAt() *time.Time { return u.deletedAt }

func (u *User) SetID(id string)           { u.id = id }
func (u *User) SetSequence(seq int)       { u.sequence = seq }
func (u *User) SetName(name string)       { u.name = name }
func (u *User) SetCreatedAt(t time.Time)  { u.createdAt = t }
func (u *User) SetUpdatedAt(t time.Time)  { u.updatedAt = t }
func (u *User) SetDeletedAt(t *time.Time) { u.deletedAt = t }

func (u *User) Validate() error {
	if u.id == "" {
		return fmt.Errorf("user id is required")
	}
	if strings.TrimSpace(u.name) == "" {
		return fmt.Errorf("user name is required")
	}
	return nil
}
