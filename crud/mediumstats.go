package crud

import (
	"context"
	"fmt"
	"time"

	"github.com/cea-hpc/phobos-sub000/dsserr"
	"github.com/cea-hpc/phobos-sub000/entity"
	"github.com/cea-hpc/phobos-sub000/lock"
	"github.com/cea-hpc/phobos-sub000/store"
)

// Bounded retry budget for acquiring the medium-update lock (spec §5,
// §4.C): stats updates on a hot medium contend often enough that a single
// failed acquire should not immediately surface as Conflict.
const (
	maxUpdateLockTry            = 10
	updateLockSleepMicroSeconds = 20000
)

// lockMediumUpdateWithRetry acquires the medium-update lock, retrying up
// to maxUpdateLockTry times with updateLockSleepMicroSeconds between
// attempts. The last error is returned once the budget is exhausted.
func lockMediumUpdateWithRetry(ctx context.Context, h *store.Handle, item lock.Item, hostname string, owner int64) error {
	var err error
	for attempt := 0; attempt < maxUpdateLockTry; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(updateLockSleepMicroSeconds * time.Microsecond):
			}
		}
		err = lock.Lock(ctx, h, lock.TypeMediumUpdate, []lock.Item{item}, hostname, owner)
		if err == nil {
			return nil
		}
		if dsserr.KindOf(err) != dsserr.Conflict {
			return err
		}
	}
	return err
}

// UpdateMediumStats implements the medium stats update special case (spec
// §4.C): it acquires the medium-update lock (spec §4.E, TypeMediumUpdate)
// with bounded retry so concurrent stats updates on the same medium
// serialize, reads the current row, merges upd onto it under
// entity.MergeStats' absolute/additive rule and writes the merged result
// back inside one transaction, then releases the lock whether or not that
// transaction succeeded. The lock is taken and released outside the
// transaction.
func UpdateMediumStats(ctx context.Context, h *store.Handle, hostname string, owner int64, ref entity.MediumRef, upd entity.StatsUpdate) error {
	item := lock.Item{Key: ref.Name, Library: ref.Library}
	if err := lockMediumUpdateWithRetry(ctx, h, item, hostname, owner); err != nil {
		return err
	}

	updateErr := h.InTransaction(ctx, func(tx *store.Tx) error {
		current, err := currentMediumStats(ctx, tx, ref)
		if err != nil {
			return err
		}
		merged := entity.MergeStats(current, upd)
		stmt, args, err := entity.MediumCodec{}.UpdateStatsQuery(ref, merged)
		if err != nil {
			return err
		}
		_, err = tx.Execute(ctx, store.AtLeastOneRow, stmt, args...)
		return err
	})

	if unlockErr := lock.Unlock(ctx, h, lock.TypeMediumUpdate, []lock.Item{item}, hostname, owner, false); unlockErr != nil {
		if updateErr != nil {
			return updateErr
		}
		return unlockErr
	}
	return updateErr
}

const mediumStatsColumns = "num_objects, logical_used, physical_used, physical_free, num_load, num_errors, last_load"

func currentMediumStats(ctx context.Context, tx *store.Tx, ref entity.MediumRef) (entity.MediumStats, error) {
	stmt := fmt.Sprintf(
		"SELECT %s FROM medium WHERE family = $1 AND name = $2 AND library = $3 FOR UPDATE",
		mediumStatsColumns)
	row := tx.QueryRow(ctx, stmt, ref.Family, ref.Name, ref.Library)

	var s entity.MediumStats
	err := row.Scan(&s.NumObjects, &s.LogicalUsed, &s.PhysicalUsed, &s.PhysicalFree, &s.NumLoad, &s.NumErrors, &s.LastLoad)
	if err != nil {
		return entity.MediumStats{}, dsserr.Wrap(dsserr.NotFound, err, "read current medium stats for %s/%s", ref.Name, ref.Library)
	}
	return s, nil
}
