package crud

import (
	"context"

	"github.com/cea-hpc/phobos-sub000/entity"
	"github.com/cea-hpc/phobos-sub000/store"
)

// MigrateExtent implements update-extent-migrate(old, new) (spec §8): every
// layout entry referencing oldUUID is repointed to newUUID, oldUUID's
// extent is marked orphan, and newUUID's extent is marked sync, all inside
// one transaction. Readers may observe both uuids referenced during the
// transaction (spec §8 open question: "not specified whether concurrent
// readers may observe an inconsistent intermediate state" — treated as
// read-committed).
func MigrateExtent(ctx context.Context, h *store.Handle, oldUUID, newUUID string) error {
	return h.InTransaction(ctx, func(tx *store.Tx) error {
		const repointStmt = "UPDATE layout SET extent_uuid = $1 WHERE extent_uuid = $2"
		if _, err := tx.Execute(ctx, store.AnyRows, repointStmt, newUUID, oldUUID); err != nil {
			return err
		}

		orphanStmt, orphanArgs, err := entity.ExtentCodec{}.UpdateQuery(
			entity.Extent{UUID: oldUUID}, entity.Extent{State: entity.ExtentOrphan}, entity.ExtentStateBit)
		if err != nil {
			return err
		}
		if _, err := tx.Execute(ctx, store.AtLeastOneRow, orphanStmt, orphanArgs...); err != nil {
			return err
		}

		syncStmt, syncArgs, err := entity.ExtentCodec{}.UpdateQuery(
			entity.Extent{UUID: newUUID}, entity.Extent{State: entity.ExtentSync}, entity.ExtentStateBit)
		if err != nil {
			return err
		}
		_, err = tx.Execute(ctx, store.AtLeastOneRow, syncStmt, syncArgs...)
		return err
	})
}
