// Package users reads operator-managed user records and carries role assignment.
package users

import (
	"github.com/google/uuid"
)

// Status is the account state of a user.
type Status string

// Account states.
const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
	StatusBlocked  Status = "BLOCKED"
)

// User is a tenant user record.
type User struct {
	ID             uuid.UUID `json:"id"`
	TenantID       uuid.UUID `json:"tenantId"`
	Username       string    `json:"username"`
	Email          string    `json:"email,omitempty"`
	FullName       string    `json:"fullName"`
	Status         Status    `json:"status"`
	FailedAttempts int       `json:"failedAttempts,omitempty"`
	LockedUntil    string    `json:"lockedUntil,omitempty"`
	LastLoginAt    string    `json:"lastLoginAt,omitempty"`
	Language       string    `json:"language,omitempty"`
	Timezone       string    `json:"timezone,omitempty"`
	SystemAdmin    bool      `json:"systemAdmin"`
	Roles          []string  `json:"roles,omitempty"`
	RoleIDs        []int64   `json:"roleIds,omitempty"`
}

// DisplayName prefers the full name.
func (u User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}

// UpdateRequest is the full-record body of PUT /users/{id}. RoleIDs replaces the user's roles.
type UpdateRequest struct {
	Username    string  `json:"username" validate:"required"`
	Email       string  `json:"email,omitempty"`
	FullName    string  `json:"fullName" validate:"required"`
	Status      Status  `json:"status,omitempty"`
	Language    string  `json:"language,omitempty"`
	Timezone    string  `json:"timezone,omitempty"`
	SystemAdmin bool    `json:"systemAdmin"`
	RoleIDs     []int64 `json:"roleIds"`
}

// UpdateFromUser copies the pass-through fields of u and sets roleIDs as the full role list.
func UpdateFromUser(u User, roleIDs []int64) UpdateRequest {
	ids := make([]int64, len(roleIDs))
	copy(ids, roleIDs)
	return UpdateRequest{
		Username:    u.Username,
		Email:       u.Email,
		FullName:    u.FullName,
		Status:      u.Status,
		Language:    u.Language,
		Timezone:    u.Timezone,
		SystemAdmin: u.SystemAdmin,
		RoleIDs:     ids,
	}
}
