package crud

import (
	"context"

	"github.com/cea-hpc/phobos-sub000/entity"
	"github.com/cea-hpc/phobos-sub000/lock"
	"github.com/cea-hpc/phobos-sub000/store"
)

// RenameObject implements spec §4.C's object rename: it acquires
// object-scoped locks on both oldOID and newOID, rewrites oid in both
// the alive and deprecated tables inside one transaction, then releases
// the locks. A lock release failure after a successfully committed
// rename is returned to the caller, but the rename itself is not undone
// — the transaction has already committed by the time locks are
// released (spec §4.C: "the rename remains committed").
func RenameObject(ctx context.Context, h *store.Handle, hostname string, owner int64, oldOID, newOID string) error {
	items := []lock.Item{{Key: oldOID}, {Key: newOID}}
	if err := lock.Lock(ctx, h, lock.TypeObject, items, hostname, owner); err != nil {
		return err
	}

	renameErr := h.InTransaction(ctx, func(tx *store.Tx) error {
		stmt, args, err := entity.ObjectCodec{}.UpdateQuery(
			entity.Object{OID: oldOID}, entity.Object{OID: newOID}, entity.ObjectOID)
		if err != nil {
			return err
		}
		if _, err := tx.Execute(ctx, store.AnyRows, stmt, args...); err != nil {
			return err
		}

		const deprecatedRenameStmt = "UPDATE deprecated_object SET oid = $1 WHERE oid = $2"
		if _, err := tx.Execute(ctx, store.AnyRows, deprecatedRenameStmt, newOID, oldOID); err != nil {
			return err
		}
		return nil
	})

	if unlockErr := lock.Unlock(ctx, h, lock.TypeObject, items, hostname, owner, false); unlockErr != nil {
		if renameErr != nil {
			return renameErr
		}
		return unlockErr
	}
	return renameErr
}
