package store

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/SajivJess/Wally/pkg/database"
	apperrors "github.com/SajivJess/Wally/pkg/errors"
)

// Classify wraps driver errors that signal an unreachable or timed out
// backend as apperrors.StorageUnavailable. Other errors are returned as-is.
func Classify(err error) error {
	if err == nil || apperrors.IsStorageUnavailable(err) {
		return err
	}
	if IsUnavailable(err) {
		return apperrors.StorageUnavailable(err)
	}
	return err
}

// IsUnavailable reports whether err looks like lost connectivity or a timeout
// rather than a rejected operation. A cancelled context is the caller giving
// up and is not counted.
func IsUnavailable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrNoDocuments) || errors.Is(err, ErrDuplicateID) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return database.IsConnectionError(err)
}
