package lock

import (
	"context"
	"database/sql/driver"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cea-hpc/phobos-sub000/dsserr"
	"github.com/cea-hpc/phobos-sub000/internal/storetest"
	"github.com/cea-hpc/phobos-sub000/store"
)

func newHandle(t *testing.T) (*store.Handle, *storetest.Script) {
	t.Helper()
	db, script := storetest.New()
	t.Cleanup(func() { db.Close() })
	return store.NewHandle(db, nil), script
}

func TestLockInsertsOneRowPerItem(t *testing.T) {
	h, script := newHandle(t)
	var inserts int
	script.On(func(query string, args []driver.Value) (storetest.Result, error) {
		if strings.HasPrefix(query, "INSERT INTO lock") {
			inserts++
			return storetest.Result{RowsAffected: 1}, nil
		}
		return storetest.Result{}, storetest.ErrNoMatch
	})

	err := Lock(context.Background(), h, TypeObject, []Item{{Key: "o1"}, {Key: "o2"}}, "host1", 42)
	require.NoError(t, err)
	require.Equal(t, 2, inserts)
}

func TestLockRollsBackOnDuplicate(t *testing.T) {
	h, script := newHandle(t)
	var inserts, deletes int
	script.On(func(query string, args []driver.Value) (storetest.Result, error) {
		switch {
		case strings.HasPrefix(query, "INSERT INTO lock"):
			inserts++
			if inserts == 2 {
				return storetest.Result{}, &duplicateError{}
			}
			return storetest.Result{RowsAffected: 1}, nil
		case strings.HasPrefix(query, "DELETE FROM lock"):
			deletes++
			return storetest.Result{RowsAffected: 1}, nil
		}
		return storetest.Result{}, storetest.ErrNoMatch
	})

	err := Lock(context.Background(), h, TypeObject, []Item{{Key: "o1"}, {Key: "o2"}}, "host1", 42)
	require.Error(t, err)
	require.Equal(t, 2, inserts)
	require.Equal(t, 1, deletes, "the first successfully inserted row must be rolled back")
}

type duplicateError struct{}

func (*duplicateError) Error() string { return "duplicate key value violates unique constraint" }

func TestDeprecatedLockAliasesToObject(t *testing.T) {
	h, script := newHandle(t)
	var sawType string
	script.On(func(query string, args []driver.Value) (storetest.Result, error) {
		if strings.HasPrefix(query, "INSERT INTO lock") {
			sawType = args[0].(string)
			return storetest.Result{RowsAffected: 1}, nil
		}
		return storetest.Result{}, storetest.ErrNoMatch
	})
	require.NoError(t, Lock(context.Background(), h, TypeDeprecated, []Item{{Key: "o1"}}, "host1", 1))
	require.Equal(t, string(TypeObject), sawType)
}

func TestItemIDRejectsOverLongComposite(t *testing.T) {
	it := Item{Key: strings.Repeat("x", MaxLockIDLen+1)}
	_, err := it.id()
	require.Error(t, err)
	require.Equal(t, dsserr.InvalidData, dsserr.KindOf(err))
}

func TestItemIDIncludesLibrarySuffix(t *testing.T) {
	id, err := Item{Key: "m1", Library: "lib"}.id()
	require.NoError(t, err)
	require.Equal(t, "m1_lib", id)
}

func TestRefreshRequiresOwnerMatch(t *testing.T) {
	h, script := newHandle(t)
	script.On(func(query string, args []driver.Value) (storetest.Result, error) {
		switch {
		case strings.HasPrefix(query, "UPDATE lock"):
			return storetest.Result{RowsAffected: 0}, nil
		case strings.HasPrefix(query, "SELECT hostname"):
			return storetest.Result{
				Columns: []string{"hostname", "owner", "timestamp", "last_locate", "is_weak"},
				Rows:    [][]driver.Value{{"otherhost", int64(7), time.Now(), time.Now(), false}},
			}, nil
		}
		return storetest.Result{}, storetest.ErrNoMatch
	})
	err := Refresh(context.Background(), h, TypeObject, []Item{{Key: "o1"}}, "host1", 1, false)
	require.Error(t, err)
	require.Equal(t, dsserr.AccessDenied, dsserr.KindOf(err))
}

func TestRefreshAbsentRowFailsNoLock(t *testing.T) {
	h, script := newHandle(t)
	script.On(func(query string, args []driver.Value) (storetest.Result, error) {
		switch {
		case strings.HasPrefix(query, "UPDATE lock"):
			return storetest.Result{RowsAffected: 0}, nil
		case strings.HasPrefix(query, "SELECT hostname"):
			return storetest.Result{}, nil // empty row set: Scan fails -> statusOne reports Held=false
		}
		return storetest.Result{}, storetest.ErrNoMatch
	})
	err := Refresh(context.Background(), h, TypeObject, []Item{{Key: "o1"}}, "host1", 1, false)
	require.Error(t, err)
	require.Equal(t, dsserr.NoLock, dsserr.KindOf(err))
}

func TestUnlockForceBypassesOwnerCheck(t *testing.T) {
	h, script := newHandle(t)
	var sawForceDelete bool
	script.On(func(query string, args []driver.Value) (storetest.Result, error) {
		if strings.HasPrefix(query, "DELETE FROM lock") {
			sawForceDelete = !strings.Contains(query, "is_weak")
			return storetest.Result{RowsAffected: 1}, nil
		}
		return storetest.Result{}, storetest.ErrNoMatch
	})
	require.NoError(t, Unlock(context.Background(), h, TypeObject, []Item{{Key: "o1"}}, "host1", 1, true))
	require.True(t, sawForceDelete)
}

func TestStatusAbsentRowIsNotHeld(t *testing.T) {
	h, script := newHandle(t)
	script.On(func(query string, args []driver.Value) (storetest.Result, error) {
		return storetest.Result{}, nil
	})
	infos, err := Status(context.Background(), h, TypeObject, []Item{{Key: "o1"}})
	require.NoError(t, err)
	require.Len(t, infos, 1)
	require.False(t, infos[0].Held)
}

func TestPurgeAllTruncates(t *testing.T) {
	h, script := newHandle(t)
	var sawTruncate bool
	script.On(func(query string, args []driver.Value) (storetest.Result, error) {
		sawTruncate = strings.Contains(query, "TRUNCATE TABLE lock")
		return storetest.Result{}, nil
	})
	require.NoError(t, PurgeAll(context.Background(), h))
	require.True(t, sawTruncate)
}
