// Package crud implements the CRUD facade (spec §4.D): a generic
// get/insert/delete/update dispatcher over the entity codecs (4.C),
// composing them with the Store gateway's transaction envelope (4.A).
package crud

import (
	"context"
	"database/sql"

	"github.com/cea-hpc/phobos-sub000/dsserr"
	"github.com/cea-hpc/phobos-sub000/entity"
	"github.com/cea-hpc/phobos-sub000/store"
)

// Codec is the subset of an entity codec's contract the facade needs to
// dispatch get/insert/delete/update generically over any entity type
// (spec §4.C/§4.D).
type Codec[T any] interface {
	InsertQuery(items []T) (string, []interface{}, error)
	UpdateQuery(src, dst T, mask entity.FieldMask) (string, []interface{}, error)
	SelectQuery(pred1, pred2 string, sort *entity.Sort) (string, []interface{}, error)
	DeleteQuery(items []T) (string, []interface{}, error)
	FromRow(rows *sql.Rows) (T, error)
}

// Executor is the Execute method shared by *store.Handle and *store.Tx.
// The facade functions in this package take a *store.Handle and open
// their own transactions; none of them takes an Executor.
type Executor interface {
	Execute(ctx context.Context, expect store.ExpectedStatus, stmt string, args ...interface{}) (sql.Result, error)
}

// Get builds up to two predicate fragments (pred1, pred2 — pred2 is only
// meaningful for multi-table codecs, spec §4.C select contract), submits
// the codec's SELECT, and decodes every row. A per-row decode failure
// stops the scan and returns the partial prefix already decoded alongside
// the error, so the caller can still make use of (or free) what was
// successfully read (spec §4.D).
func Get[T any](ctx context.Context, h *store.Handle, codec Codec[T], pred1, pred2 string, sort *entity.Sort) ([]T, error) {
	stmt, args, err := codec.SelectQuery(pred1, pred2, sort)
	if err != nil {
		return nil, err
	}
	rows, err := h.Query(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		item, err := codec.FromRow(rows)
		if err != nil {
			return out, err
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return out, store.ClassifyError(err, "scan result rows")
	}
	return out, nil
}

// Insert wraps the codec's INSERT for the whole batch in one transaction
// (spec §4.D): all rows commit together or none do.
func Insert[T any](ctx context.Context, h *store.Handle, codec Codec[T], items []T) error {
	if len(items) == 0 {
		return dsserr.Kindf(dsserr.InvalidData, "insert requires at least one item")
	}
	stmt, args, err := codec.InsertQuery(items)
	if err != nil {
		return err
	}
	return h.InTransaction(ctx, func(tx *store.Tx) error {
		_, err := tx.Execute(ctx, store.AnyRows, stmt, args...)
		return err
	})
}

// Delete wraps the codec's DELETE for the whole batch in one transaction.
func Delete[T any](ctx context.Context, h *store.Handle, codec Codec[T], items []T) error {
	if len(items) == 0 {
		return dsserr.Kindf(dsserr.InvalidData, "delete requires at least one item")
	}
	stmt, args, err := codec.DeleteQuery(items)
	if err != nil {
		return err
	}
	return h.InTransaction(ctx, func(tx *store.Tx) error {
		_, err := tx.Execute(ctx, store.AnyRows, stmt, args...)
		return err
	})
}

// Update wraps a per-item UPDATE sequence in one transaction: src[i]
// supplies item i's key, dst[i] its new values, under field-mask (spec
// §4.D). A mask of 0 is accepted as a no-op and never opens a
// transaction. src and dst must be the same length.
func Update[T any](ctx context.Context, h *store.Handle, codec Codec[T], src, dst []T, mask entity.FieldMask) error {
	if mask == 0 {
		return nil
	}
	if len(src) != len(dst) {
		return dsserr.Kindf(dsserr.InvalidData, "update requires matching src/dst lengths, got %d and %d", len(src), len(dst))
	}
	if len(src) == 0 {
		return dsserr.Kindf(dsserr.InvalidData, "update requires at least one item")
	}

	type step struct {
		stmt string
		args []interface{}
	}
	steps := make([]step, len(src))
	for i := range src {
		stmt, args, err := codec.UpdateQuery(src[i], dst[i], mask)
		if err != nil {
			return err
		}
		steps[i] = step{stmt, args}
	}

	return h.InTransaction(ctx, func(tx *store.Tx) error {
		for _, s := range steps {
			if _, err := tx.Execute(ctx, store.AtLeastOneRow, s.stmt, s.args...); err != nil {
				return err
			}
		}
		return nil
	})
}
