package store

import (
	"errors"
	"testing"

	"github.com/lib/pq"

	"github.com/cea-hpc/phobos-sub000/dsserr"
)

func TestClassifyPQErrorPrefixMatching(t *testing.T) {
	tests := []struct {
		note string
		code string
		want dsserr.ErrKind
	}{
		{"success", "00000", dsserr.Ok},
		{"check violation", "23514", dsserr.Conflict},
		{"syntax error", "42601", dsserr.InvalidData},
		{"numeric out of range", "22003", dsserr.InvalidData},
		{"disk full", "53100", dsserr.NoSpace},
		{"out of memory", "53200", dsserr.OutOfMemory},
		{"too many connections", "53300", dsserr.TooManyUsers},
		{"generic resource exhaustion", "53400", dsserr.IoError},
		{"no lock", "PHLK1", dsserr.NoLock},
		{"access denied", "PHLK2XYZ", dsserr.AccessDenied},
		{"unmapped", "99999", dsserr.CommunicationError},
	}

	for _, tc := range tests {
		t.Run(tc.note, func(t *testing.T) {
			err := &pq.Error{Code: pq.ErrorCode(tc.code)}
			got := ClassifyPQError(err)
			if got != tc.want {
				t.Errorf("ClassifyPQError(%q) = %v, want %v", tc.code, got, tc.want)
			}
		})
	}
}

func TestClassifyPQErrorLongestPrefixWins(t *testing.T) {
	// 53100 matches both "53" and "53100"; the longer, more specific
	// prefix must win.
	err := &pq.Error{Code: pq.ErrorCode("53100")}
	if got := ClassifyPQError(err); got != dsserr.NoSpace {
		t.Errorf("expected longest-prefix match NoSpace, got %v", got)
	}
}

func TestClassifyPQErrorNonPQError(t *testing.T) {
	got := ClassifyPQError(errors.New("dial tcp 127.0.0.1:5432: connection refused"))
	if got != dsserr.NotConnected {
		t.Errorf("expected NotConnected for dial failure, got %v", got)
	}

	got = ClassifyPQError(errors.New("some other failure"))
	if got != dsserr.CommunicationError {
		t.Errorf("expected CommunicationError catch-all, got %v", got)
	}
}

func TestClassifyErrorWrapsCause(t *testing.T) {
	cause := &pq.Error{Code: "23505"}
	err := ClassifyError(cause, "insert row")
	if err.Kind != dsserr.Conflict {
		t.Errorf("Kind = %v, want Conflict", err.Kind)
	}
	if !errors.Is(err, cause) {
		t.Errorf("expected Unwrap chain to reach the original pq.Error")
	}
}
