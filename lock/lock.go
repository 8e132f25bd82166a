// Package lock implements the lock registry (spec §4.E): acquire,
// refresh, release and inspect rows in the shared lock table, with
// strong/weak ownership semantics, forced unlock, and the bulk
// clean/purge administrative operations. Every operation is a small
// number of Store statements; the registry holds no in-process state of
// its own, matching spec §3's "process-wide state backed by the Store."
package lock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/cea-hpc/phobos-sub000/dsserr"
	"github.com/cea-hpc/phobos-sub000/store"
)

// MaxLockIDLen bounds the escaped composite id a lock row may carry
// (spec §4.E); exceeding it fails InvalidData before any statement runs.
const MaxLockIDLen = 255

// Type is a lock's resource family. Deprecated-object locks are stored
// under TypeObject: the registry aliases DEPREC → OBJECT on the way in
// (spec §4.E "key design decision"), so TypeDeprecated never appears in
// the lock table itself.
type Type string

const (
	TypeObject     Type = "object"
	TypeDeprecated Type = "deprecated"
	TypeDevice     Type = "device"
	TypeMedium     Type = "medium"
	// TypeMediumUpdate names the lock a stats update acquires (spec §4.C)
	// distinctly from a plain medium lock, so the two never contend.
	TypeMediumUpdate Type = "medium_update"
)

func storageType(t Type) Type {
	if t == TypeDeprecated {
		return TypeObject
	}
	return t
}

// Item names one lockable entity: Key is its primary natural-key
// component (oid, device id, medium id, …), Library is the optional
// secondary component composite keys (medium, device) carry.
type Item struct {
	Key     string
	Library string
}

// id computes the colon-less composite lock id (spec §4.E:
// "escape(key) [ '_' escape(library) ]"). escape here strips colons,
// the one character the id format reserves as a separator elsewhere in
// the schema; it is not a SQL escape (ids are always bound as
// parameters, never spliced into statement text).
func (it Item) id() (string, error) {
	id := escape(it.Key)
	if it.Library != "" {
		id = id + "_" + escape(it.Library)
	}
	if len(id) > MaxLockIDLen {
		return "", dsserr.Kindf(dsserr.InvalidData, "lock id %q exceeds maximum length %d", id, MaxLockIDLen)
	}
	return id, nil
}

func escape(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}

// Info is the decoded state of one lock row (spec §4.E status()).
type Info struct {
	Hostname   string
	Owner      int64
	Timestamp  time.Time
	LastLocate time.Time
	IsWeak     bool
	// Held is false for an absent row; Hostname/Owner are the zero value
	// and the caller should treat the row as dsserr.NoLock (spec §4.E).
	Held bool
}

const lockTable = "lock"

// Lock inserts one row per item, strong (not weak), owned by
// hostname/owner. On any failure, every row this call already inserted
// is force-removed in reverse order (spec §4.E rollback scan) before the
// error is returned; a duplicate row surfaces as dsserr.Conflict (an
// "AlreadyExists" condition under this module's taxonomy, spec §6.4).
func Lock(ctx context.Context, h *store.Handle, typ Type, items []Item, hostname string, owner int64) error {
	typ = storageType(typ)
	inserted := make([]string, 0, len(items))
	for _, it := range items {
		id, err := it.id()
		if err != nil {
			rollbackInserted(ctx, h, typ, inserted)
			return err
		}
		stmt := fmt.Sprintf(
			"INSERT INTO %s (type, id, hostname, owner, timestamp, last_locate, is_weak) VALUES ($1, $2, $3, $4, now(), now(), false)",
			lockTable)
		if _, err := h.Execute(ctx, store.AnyRows, stmt, typ, id, hostname, owner); err != nil {
			rollbackInserted(ctx, h, typ, inserted)
			return err
		}
		inserted = append(inserted, id)
	}
	return nil
}

func rollbackInserted(ctx context.Context, h *store.Handle, typ Type, ids []string) {
	for i := len(ids) - 1; i >= 0; i-- {
		stmt := fmt.Sprintf("DELETE FROM %s WHERE type = $1 AND id = $2", lockTable)
		_, _ = h.Execute(ctx, store.AnyRows, stmt, typ, ids[i])
	}
}

// LockWeak inserts rows marked weak, with last_locate set to now and no
// owner asserted (spec §4.E: "a weak lock exists even when no owner is
// asserted").
func LockWeak(ctx context.Context, h *store.Handle, typ Type, items []Item, hostname string) error {
	typ = storageType(typ)
	inserted := make([]string, 0, len(items))
	for _, it := range items {
		id, err := it.id()
		if err != nil {
			rollbackInserted(ctx, h, typ, inserted)
			return err
		}
		stmt := fmt.Sprintf(
			"INSERT INTO %s (type, id, hostname, owner, timestamp, last_locate, is_weak) VALUES ($1, $2, $3, 0, now(), now(), true)",
			lockTable)
		if _, err := h.Execute(ctx, store.AnyRows, stmt, typ, id, hostname); err != nil {
			rollbackInserted(ctx, h, typ, inserted)
			return err
		}
		inserted = append(inserted, id)
	}
	return nil
}

// Refresh updates timestamp (or last_locate, when locate is true) on
// each item's row. The caller's hostname+owner must match the stored
// values unless the row is weak. When the UPDATE affects no row, the row
// is read back: if it exists (an owner mismatch) Refresh fails
// AccessDenied, otherwise it fails NoLock.
func Refresh(ctx context.Context, h *store.Handle, typ Type, items []Item, hostname string, owner int64, locate bool) error {
	typ = storageType(typ)
	column := "timestamp"
	if locate {
		column = "last_locate"
	}
	for _, it := range items {
		id, err := it.id()
		if err != nil {
			return err
		}
		stmt := fmt.Sprintf(
			"UPDATE %s SET %s = now() WHERE type = $1 AND id = $2 AND (is_weak OR (hostname = $3 AND owner = $4))",
			lockTable, column)
		if _, err := h.Execute(ctx, store.AtLeastOneRow, stmt, typ, id, hostname, owner); err != nil {
			if dsserr.KindOf(err) == dsserr.NoLock {
				if info, statusErr := statusOne(ctx, h, typ, id); statusErr == nil && info.Held {
					return dsserr.Kindf(dsserr.AccessDenied, "refresh %s/%s: owner mismatch", typ, id)
				}
			}
			return err
		}
	}
	return nil
}

// RefreshTakeOwnership upserts each item's row: if present and weak on
// the same host, ownership is taken (owner set, weak cleared); if
// present and strong, the call is a no-op unless the row is already
// owned by hostname/owner; if absent, a fresh strong row is inserted
// (spec §4.E).
func RefreshTakeOwnership(ctx context.Context, h *store.Handle, typ Type, items []Item, hostname string, owner int64) error {
	typ = storageType(typ)
	for _, it := range items {
		id, err := it.id()
		if err != nil {
			return err
		}
		info, err := statusOne(ctx, h, typ, id)
		if err != nil {
			return err
		}
		if !info.Held {
			if err := Lock(ctx, h, typ, []Item{it}, hostname, owner); err != nil {
				return err
			}
			continue
		}
		if info.IsWeak {
			if info.Hostname != hostname {
				return dsserr.Kindf(dsserr.AccessDenied, "take ownership %s/%s: held weak by a different host", typ, id)
			}
			stmt := fmt.Sprintf(
				"UPDATE %s SET owner = $1, is_weak = false, timestamp = now() WHERE type = $2 AND id = $3",
				lockTable)
			if _, err := h.Execute(ctx, store.AtLeastOneRow, stmt, owner, typ, id); err != nil {
				return err
			}
			continue
		}
		if info.Hostname != hostname || info.Owner != owner {
			return dsserr.Kindf(dsserr.AccessDenied, "take ownership %s/%s: already held by a different owner", typ, id)
		}
	}
	return nil
}

// Unlock deletes matching rows. Unforced calls require hostname+owner to
// match unless the row is weak; an absent row fails NoLock, a mismatched
// row fails AccessDenied. force bypasses both checks (spec §4.E).
func Unlock(ctx context.Context, h *store.Handle, typ Type, items []Item, hostname string, owner int64, force bool) error {
	typ = storageType(typ)
	for _, it := range items {
		id, err := it.id()
		if err != nil {
			return err
		}
		var stmt string
		var args []interface{}
		if force {
			stmt = fmt.Sprintf("DELETE FROM %s WHERE type = $1 AND id = $2", lockTable)
			args = []interface{}{typ, id}
		} else {
			stmt = fmt.Sprintf(
				"DELETE FROM %s WHERE type = $1 AND id = $2 AND (is_weak OR (hostname = $3 AND owner = $4))",
				lockTable)
			args = []interface{}{typ, id, hostname, owner}
		}
		if _, err := h.Execute(ctx, store.AtLeastOneRow, stmt, args...); err != nil {
			if dsserr.KindOf(err) == dsserr.NoLock && !force {
				if info, statusErr := statusOne(ctx, h, typ, id); statusErr == nil && info.Held {
					return dsserr.Kindf(dsserr.AccessDenied, "unlock %s/%s: owner mismatch", typ, id)
				}
			}
			return err
		}
	}
	return nil
}

// Status reads lock state for each item. An absent row returns an Info
// with Held=false (hostname = "", owner = 0), matching spec §4.E's
// "absent row fills hostname = NULL, owner = 0 and returns NoLock" —
// callers that must treat an absent lock as an error check Held
// themselves, status() itself does not force an error return per item so
// a caller can batch a status query over a mix of held/absent items.
func Status(ctx context.Context, h *store.Handle, typ Type, items []Item) ([]Info, error) {
	typ = storageType(typ)
	out := make([]Info, 0, len(items))
	for _, it := range items {
		id, err := it.id()
		if err != nil {
			return out, err
		}
		info, err := statusOne(ctx, h, typ, id)
		if err != nil {
			return out, err
		}
		out = append(out, info)
	}
	return out, nil
}

func statusOne(ctx context.Context, h *store.Handle, typ Type, id string) (Info, error) {
	stmt := fmt.Sprintf("SELECT hostname, owner, timestamp, last_locate, is_weak FROM %s WHERE type = $1 AND id = $2", lockTable)
	row := h.QueryRow(ctx, stmt, typ, id)
	var info Info
	err := row.Scan(&info.Hostname, &info.Owner, &info.Timestamp, &info.LastLocate, &info.IsWeak)
	if err != nil {
		return Info{Held: false}, nil
	}
	info.Held = true
	return info, nil
}

// CleanDeviceLocks deletes device locks held by hostname whose id matches
// no device of the given family hosted on hostname (ids built from the
// device name and library as in Item.id) — used at daemon startup to
// garbage-collect stale device locks (spec §4.E). owner is not part of
// the match: the device table has no owner column.
func CleanDeviceLocks(ctx context.Context, h *store.Handle, family, hostname string, owner int64) error {
	stmt := fmt.Sprintf(`DELETE FROM %s
		WHERE type = $1 AND hostname = $2
		AND id NOT IN (SELECT replace(name, ':', '_') || CASE WHEN library = '' THEN '' ELSE '_' || replace(library, ':', '_') END
			FROM device WHERE host = $2 AND family = $3)`,
		lockTable)
	_, err := h.Execute(ctx, store.AnyRows, stmt, TypeDevice, hostname, family)
	return err
}

// CleanMediaLocks deletes media locks held by hostname with a different
// owner and not in activeMediaIDs, plus every medium-update lock for
// hostname (spec §4.E).
func CleanMediaLocks(ctx context.Context, h *store.Handle, hostname string, owner int64, activeMediaIDs []string) error {
	stmt := fmt.Sprintf(
		"DELETE FROM %s WHERE type = $1 AND hostname = $2 AND owner != $3 AND NOT (id = ANY($4))",
		lockTable)
	if activeMediaIDs == nil {
		activeMediaIDs = []string{}
	}
	if _, err := h.Execute(ctx, store.AnyRows, stmt, TypeMedium, hostname, owner, pq.Array(activeMediaIDs)); err != nil {
		return err
	}
	stmt = fmt.Sprintf("DELETE FROM %s WHERE type = $1 AND hostname = $2", lockTable)
	_, err := h.Execute(ctx, store.AnyRows, stmt, TypeMediumUpdate, hostname)
	return err
}

// PurgeAll truncates the lock table. Administrative only (spec §4.E).
func PurgeAll(ctx context.Context, h *store.Handle) error {
	stmt := fmt.Sprintf("TRUNCATE TABLE %s", lockTable)
	_, err := h.Execute(ctx, store.AnyRows, stmt)
	return err
}
