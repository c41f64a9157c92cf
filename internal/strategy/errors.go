package strategy

import (
	"errors"
	"fmt"
)

// Kind classifies a migration failure
type Kind string

const (
	KindNotAnEvent                Kind = "not-an-event"
	KindWrongStrategy             Kind = "wrong-strategy"
	KindUpsertFailed              Kind = "upsert-failed"
	KindModelNotFound             Kind = "model-not-found"
	KindUnexpectedOccurrenceCount Kind = "unexpected-occurrence-count"
	KindInvalidRecurrence         Kind = "invalid-recurrence"
	KindUnknownStrategy           Kind = "unknown-strategy"
	KindSplitFailed               Kind = "split-failed"
	KindOccurrenceMismatch        Kind = "occurrence-mismatch"
	KindRevertFailed              Kind = "revert-failed"
)

// Sentinels matched by errors.Is against any MigrationError of that kind
var (
	ErrNotAnEvent                = errors.New("post is not an event")
	ErrWrongStrategy             = errors.New("wrong strategy for event")
	ErrUpsertFailed              = errors.New("event upsert failed")
	ErrModelNotFound             = errors.New("event not found after upsert")
	ErrUnexpectedOccurrenceCount = errors.New("unexpected occurrence count")
	ErrInvalidRecurrence         = errors.New("invalid recurrence")
	ErrUnknownStrategy           = errors.New("no strategy can migrate the event")
	ErrSplitFailed               = errors.New("event split failed")
	ErrOccurrenceMismatch        = errors.New("occurrences changed during migration")
	ErrRevertFailed              = errors.New("event revert failed")
)

var sentinels = map[Kind]error{
	KindNotAnEvent:                ErrNotAnEvent,
	KindWrongStrategy:             ErrWrongStrategy,
	KindUpsertFailed:              ErrUpsertFailed,
	KindModelNotFound:             ErrModelNotFound,
	KindUnexpectedOccurrenceCount: ErrUnexpectedOccurrenceCount,
	KindInvalidRecurrence:         ErrInvalidRecurrence,
	KindUnknownStrategy:           ErrUnknownStrategy,
	KindSplitFailed:               ErrSplitFailed,
	KindOccurrenceMismatch:        ErrOccurrenceMismatch,
	KindRevertFailed:              ErrRevertFailed,
}

// MigrationError aborts the migration of a single event. Message is meant
// for the person running the migration.
type MigrationError struct {
	Kind    Kind
	PostID  int64
	Message string
	Count   int // occurrence count, for count failures
	Err     error
}

func (e *MigrationError) Error() string {
	msg := fmt.Sprintf("post %d: %s", e.PostID, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MigrationError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind
func (e *MigrationError) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

func newError(kind Kind, postID int64, format string, args ...any) *MigrationError {
	return &MigrationError{Kind: kind, PostID: postID, Message: fmt.Sprintf(format, args...)}
}

func wrapError(kind Kind, postID int64, err error, format string, args ...any) *MigrationError {
	e := newError(kind, postID, format, args...)
	e.Err = err
	return e
}

// KindOf returns the kind of a migration error, or "" for other errors
func KindOf(err error) Kind {
	var me *MigrationError
	if errors.As(err, &me) {
		return me.Kind
	}
	return ""
}
