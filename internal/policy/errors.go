package policy

import (
	"errors"
	"fmt"
)

// These mirror the root package's public error taxonomy (SPEC_FULL.md
// section 7) but live here because the root package imports this one;
// Client.go translates them 1:1 at the facade boundary.
var (
	ErrOffline   = errors.New("pbsync: policy: offline")
	ErrCacheMiss = errors.New("pbsync: policy: cache miss")
)

// RemoteFailureError mirrors the root package's RemoteFailureError.
type RemoteFailureError struct {
	Status int
	Body   string
}

func (e *RemoteFailureError) Error() string {
	return fmt.Sprintf("pbsync: policy: remote failure: status=%d body=%s", e.Status, e.Body)
}

// ConflictingIDError is emitted (as a log warning, not a returned error) on
// CacheAndNetwork/CacheFirst create id reconciliation.
type ConflictingIDError struct {
	Local  string
	Server string
}

func (e *ConflictingIDError) Error() string {
	return fmt.Sprintf("pbsync: policy: server assigned id %q, local id %q discarded", e.Server, e.Local)
}

func isRecoverableCreateStatus(status int) bool { return status == 400 }

func isRecoverableUpdateStatus(status int) bool { return status == 404 || status == 400 }
