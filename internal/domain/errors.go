package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotConfigured     = errors.New("fee not configured")
	ErrDuplicateInvoice  = errors.New("invoice already exists for period")
	ErrNotFound          = errors.New("not found")
	ErrTenantDeleted     = errors.New("tenant is deleted")
	ErrConcurrentUpdate  = errors.New("tenant changed concurrently")
	ErrLockNotAcquired   = errors.New("tenant lock not acquired")
	ErrInvalidTransition = errors.New("invalid state transition")
)

// DispatchFailure lists the channels that failed for one notification.
type DispatchFailure struct {
	TenantID int32
	Channels map[string]error
}

func (e *DispatchFailure) Error() string {
	names := make([]string, 0, len(e.Channels))
	for name := range e.Channels {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %v", name, e.Channels[name]))
	}
	return fmt.Sprintf("dispatch to tenant %d failed (%s)", e.TenantID, strings.Join(parts, "; "))
}

// PersistenceFailure wraps a storage error raised while processing one tenant.
type PersistenceFailure struct {
	Op  string
	Err error
}

func (e *PersistenceFailure) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceFailure) Unwrap() error {
	return e.Err
}

// UnconfiguredMembersError is returned by invoice generation alongside the created count
// when some members were skipped for lack of a fee.
type UnconfiguredMembersError struct {
	TenantID  int32
	MemberIDs []int32
}

func (e *UnconfiguredMembersError) Error() string {
	return fmt.Sprintf("tenant %d: %d member(s) without fee configuration: %v", e.TenantID, len(e.MemberIDs), e.MemberIDs)
}

func (e *UnconfiguredMembersError) Unwrap() error {
	return ErrNotConfigured
}
