// Package processorerrors contains the error types shared across the content
// processor. Startup code distinguishes configuration problems, which are
// fatal to the owning component, from network and database errors, which are
// retried.
package processorerrors

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
)

// ErrInvalidConfiguration indicates a missing or malformed configuration
// value, including a required field missing from a reference dictionary
// source. It is fatal to the startup of the component that finds it.
type ErrInvalidConfiguration struct {
	Component string
	Message   string
}

func (err *ErrInvalidConfiguration) Error() string {
	if err.Component != "" {
		return fmt.Sprintf("invalid configuration for %s: %s", err.Component, err.Message)
	}
	return fmt.Sprintf("invalid configuration: %s", err.Message)
}

// ErrStaleDequeue indicates that a queue item disappeared between the peek
// and the delete. With a single consumer per partition this should never
// happen; it is surfaced so misconfigured double consumers are noticed.
type ErrStaleDequeue struct {
	QueueName string
}

func (err *ErrStaleDequeue) Error() string {
	return fmt.Sprintf("queue %q changed underneath its consumer; is another consumer attached?", err.QueueName)
}

// IsNetworkError returns true if the error is likely to be caused by a
// transient network problem worth retrying.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

// IsRetryablePostgresError returns true for postgres errors that indicate a
// transient condition, e.g. a dropped connection or an admin shutdown, as
// opposed to a statement that will fail however often it is run.
func IsRetryablePostgresError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgerrcode.IsConnectionException(pgErr.Code) ||
		pgerrcode.IsOperatorIntervention(pgErr.Code) ||
		pgErr.Code == pgerrcode.SerializationFailure ||
		pgErr.Code == pgerrcode.DeadlockDetected
}

// IsRetryable combines the network and postgres checks; used as the RetryIf
// predicate for startup loads.
func IsRetryable(err error) bool {
	return IsNetworkError(err) || IsRetryablePostgresError(err)
}
