package store

import (
	"errors"
	"strings"

	"github.com/lib/pq"

	"github.com/cea-hpc/phobos-sub000/dsserr"
)

// sqlStatePrefixes maps SQL-state prefixes to error kinds (spec §4.A).
// Entries are not ordered by length: ClassifyPQError keeps the longest
// prefix that matches. A code that matches no prefix classifies as
// CommunicationError, the value ClassifyPQError starts from.
var sqlStatePrefixes = []struct {
	prefix string
	kind   dsserr.ErrKind
}{
	{"00000", dsserr.Ok},
	{"53100", dsserr.NoSpace},
	{"53200", dsserr.OutOfMemory},
	{"53300", dsserr.TooManyUsers},
	{"53", dsserr.IoError},
	{"PHLK1", dsserr.NoLock},
	{"PHLK2", dsserr.AccessDenied},
	{"22", dsserr.InvalidData},
	{"23", dsserr.Conflict},
	{"42", dsserr.InvalidData},
}

// ClassifyPQError maps a raw backend error onto a DSS ErrKind following the
// SQL-state prefix table in spec §4.A. Non-pq errors (connection refused,
// context deadline, etc.) classify as CommunicationError or NotConnected.
func ClassifyPQError(err error) dsserr.ErrKind {
	if err == nil {
		return dsserr.Ok
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		code := string(pqErr.Code)
		best := dsserr.CommunicationError
		bestLen := -1
		for _, e := range sqlStatePrefixes {
			if strings.HasPrefix(code, e.prefix) && len(e.prefix) > bestLen {
				best = e.kind
				bestLen = len(e.prefix)
			}
		}
		return best
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "no such host"),
		strings.Contains(msg, "dial tcp"),
		errors.Is(err, ErrNotConnected):
		return dsserr.NotConnected
	}
	return dsserr.CommunicationError
}

// ClassifyError converts a raw backend error into a *dsserr.Error carrying
// the mapped ErrKind and the supplied context message.
func ClassifyError(err error, context string) *dsserr.Error {
	if err == nil {
		return nil
	}
	return dsserr.Wrap(ClassifyPQError(err), err, context)
}
