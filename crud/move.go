package crud

import (
	"context"
	"time"

	"github.com/cea-hpc/phobos-sub000/entity"
	"github.com/cea-hpc/phobos-sub000/store"
)

// MoveToDeprecated implements the alive→deprecated transition (spec §3):
// obj is inserted into the deprecated table with deprecTime stamped on,
// then removed from the alive table, both inside one transaction so the
// move is atomic — a reader never observes obj as both alive and
// deprecated, or as neither. Every field but DeprecTime is preserved
// unchanged, satisfying the round-trip law in spec §8.
func MoveToDeprecated(ctx context.Context, h *store.Handle, obj entity.Object, deprecTime time.Time) error {
	dep := entity.DeprecatedObject{
		OID:          obj.OID,
		UUID:         obj.UUID,
		Version:      obj.Version,
		UserMetadata: obj.UserMetadata,
		Grouping:     obj.Grouping,
		Size:         obj.Size,
		CreationTime: obj.CreationTime,
		DeprecTime:   deprecTime,
	}
	return h.InTransaction(ctx, func(tx *store.Tx) error {
		insStmt, insArgs, err := entity.DeprecatedObjectCodec{}.InsertQuery([]entity.DeprecatedObject{dep})
		if err != nil {
			return err
		}
		if _, err := tx.Execute(ctx, store.AnyRows, insStmt, insArgs...); err != nil {
			return err
		}

		delStmt, delArgs, err := entity.ObjectCodec{}.DeleteQuery([]entity.Object{obj})
		if err != nil {
			return err
		}
		_, err = tx.Execute(ctx, store.AtLeastOneRow, delStmt, delArgs...)
		return err
	})
}

// MoveFromDeprecated implements the deprecated→alive transition (spec
// §3): dep is inserted into the alive table, then removed from the
// deprecated table, both inside one transaction. A dep.OID that
// collides with an existing alive oid surfaces as dsserr.Conflict from
// the insert's primary-key constraint — deprecated→alive "must not
// collide on oid" is enforced by the backend, not re-checked here.
func MoveFromDeprecated(ctx context.Context, h *store.Handle, dep entity.DeprecatedObject) error {
	obj := entity.Object{
		OID:          dep.OID,
		UUID:         dep.UUID,
		Version:      dep.Version,
		UserMetadata: dep.UserMetadata,
		Grouping:     dep.Grouping,
		Size:         dep.Size,
		CreationTime: dep.CreationTime,
	}
	return h.InTransaction(ctx, func(tx *store.Tx) error {
		insStmt, insArgs, err := entity.ObjectCodec{}.InsertQuery([]entity.Object{obj})
		if err != nil {
			return err
		}
		if _, err := tx.Execute(ctx, store.AnyRows, insStmt, insArgs...); err != nil {
			return err
		}

		delStmt, delArgs, err := entity.DeprecatedObjectCodec{}.DeleteQuery([]entity.DeprecatedObject{dep})
		if err != nil {
			return err
		}
		_, err = tx.Execute(ctx, store.AtLeastOneRow, delStmt, delArgs...)
		return err
	})
}
