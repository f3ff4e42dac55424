package auth

import (
	"context"
	"errors"
)

// Role is the caller's role as carried in the token.
type Role string

const (
	RolePatient   Role = "patient"
	RoleTherapist Role = "therapist"
	RoleAdmin     Role = "admin"
)

var (
	// ErrForbidden means the caller may not touch the requested user's data.
	ErrForbidden = errors.New("access denied")
	// ErrUserIDRequired means a non-patient caller did not name a target user.
	ErrUserIDRequired = errors.New("userId query parameter required for therapists")
	// ErrOwnerRequired means a non-patient submitted a record without userId.
	ErrOwnerRequired = errors.New("userId is required")
	// ErrUnauthenticated means no caller identity was attached to the request.
	ErrUnauthenticated = errors.New("unauthenticated")
)

// ParseRole maps a token role string to a Role. Unknown strings yield "", false.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RolePatient, RoleTherapist, RoleAdmin:
		return Role(s), true
	}
	return "", false
}

// Caller identifies the authenticated user of a request.
type Caller struct {
	UserID int64
	Role   Role
}

// ActsForOthers reports whether the role may read or write other users' data.
func (c Caller) ActsForOthers() bool {
	return c.Role == RoleTherapist || c.Role == RoleAdmin
}

// CanAccessUserData reports whether caller may read or modify data owned by
// targetUserID. Patients only reach their own rows; therapists and admins
// reach any patient.
func CanAccessUserData(caller Caller, targetUserID int64) bool {
	switch caller.Role {
	case RolePatient:
		return caller.UserID == targetUserID
	case RoleTherapist, RoleAdmin:
		return true
	}
	return false
}

// ResolveTargetUser picks the user a read query applies to. Patients are
// always pinned to themselves and any requested id is ignored; therapists
// must name the user explicitly.
func ResolveTargetUser(caller Caller, requested *int64) (int64, error) {
	switch {
	case caller.Role == RolePatient:
		return caller.UserID, nil
	case caller.ActsForOthers():
		if requested == nil {
			return 0, ErrUserIDRequired
		}
		return *requested, nil
	}
	return 0, ErrForbidden
}

// ResolveWriteTarget picks the owner of a submitted record. A patient naming
// somebody else is rejected instead of silently rewritten; a non-patient
// must name the user.
func ResolveWriteTarget(caller Caller, requested *int64) (int64, error) {
	if caller.Role == RolePatient {
		if requested != nil && *requested != caller.UserID {
			return 0, ErrForbidden
		}
		return caller.UserID, nil
	}
	if !caller.ActsForOthers() {
		return 0, ErrForbidden
	}
	if requested == nil {
		return 0, ErrOwnerRequired
	}
	return *requested, nil
}

type callerKey struct{}

// WithCaller stores the caller on ctx.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFromContext returns the caller stored by the auth middleware.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	return c, ok
}
