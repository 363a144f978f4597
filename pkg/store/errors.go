package store

import (
	"database/sql/driver"
	"errors"
	"io"
	"net"

	"github.com/lib/pq"
)

// Transient Postgres error classes: connection exceptions (08), insufficient
// resources (53), and operator intervention such as shutdown (57). Anything
// else, notably integrity violations (23), is permanent and not retried.
var transientPgClasses = map[string]bool{
	"08": true,
	"53": true,
	"57": true,
}

// IsTransient reports whether a save failure is expected to self-resolve and
// therefore worth a retry.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, io.EOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return transientPgClasses[string(pqErr.Code.Class())]
	}
	return false
}
