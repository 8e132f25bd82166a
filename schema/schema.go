// Package schema implements the schema gate (spec §4.H): a single check,
// run once at Handle open, that the persisted schema version matches the
// version this build of the code expects.
package schema

import (
	"context"

	"github.com/cea-hpc/phobos-sub000/dsserr"
	"github.com/cea-hpc/phobos-sub000/store"
)

// Version is the compile-time schema version constant (spec §6.3). A
// persisted schema_info row with any other version aborts Handle open.
const Version = "2.2"

// Check runs `SELECT version FROM schema_info WHERE version = Version` and
// requires exactly one matching tuple. Any other count — zero (schema
// never initialized or mismatched) or more than one (corrupt schema_info
// table) — fails SchemaMismatch.
func Check(ctx context.Context, h *store.Handle) error {
	rows, err := h.Query(ctx, `SELECT version FROM schema_info WHERE version = $1`, Version)
	if err != nil {
		return err
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return dsserr.Wrap(dsserr.SchemaMismatch, err, "scan schema_info row")
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return store.ClassifyError(err, "read schema_info")
	}

	if count != 1 {
		return dsserr.Kindf(dsserr.SchemaMismatch,
			"expected exactly one schema_info row for version %q, found %d", Version, count)
	}
	return nil
}
