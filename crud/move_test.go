package crud

import (
	"context"
	"database/sql/driver"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cea-hpc/phobos-sub000/entity"
	"github.com/cea-hpc/phobos-sub000/internal/storetest"
	"github.com/cea-hpc/phobos-sub000/store"
)

func TestMoveToDeprecatedInsertsThenDeletesInsideOneTransaction(t *testing.T) {
	db, script := storetest.New()
	defer db.Close()
	h := store.NewHandle(db, nil)

	var sawInsert, sawDelete bool
	script.On(func(query string, args []driver.Value) (storetest.Result, error) {
		switch {
		case strings.HasPrefix(query, "INSERT INTO deprecated_object"):
			sawInsert = true
			require.False(t, sawDelete, "insert must run before delete")
			return storetest.Result{RowsAffected: 1}, nil
		case strings.HasPrefix(query, "DELETE FROM object"):
			sawDelete = true
			require.True(t, sawInsert, "delete must run after insert")
			return storetest.Result{RowsAffected: 1}, nil
		}
		return storetest.Result{}, storetest.ErrNoMatch
	})

	obj := entity.Object{OID: "o1", UUID: "u1", Version: 1}
	deprecTime := time.Unix(1700000000, 0).UTC()
	err := MoveToDeprecated(context.Background(), h, obj, deprecTime)
	require.NoError(t, err)
	require.True(t, sawInsert)
	require.True(t, sawDelete)
}

func TestMoveToDeprecatedFailsWhenDeleteAffectsNoRows(t *testing.T) {
	db, script := storetest.New()
	defer db.Close()
	h := store.NewHandle(db, nil)

	script.On(func(query string, args []driver.Value) (storetest.Result, error) {
		switch {
		case strings.HasPrefix(query, "INSERT INTO deprecated_object"):
			return storetest.Result{RowsAffected: 1}, nil
		case strings.HasPrefix(query, "DELETE FROM object"):
			return storetest.Result{RowsAffected: 0}, nil
		}
		return storetest.Result{}, storetest.ErrNoMatch
	})

	obj := entity.Object{OID: "missing", UUID: "u1", Version: 1}
	err := MoveToDeprecated(context.Background(), h, obj, time.Now().UTC())
	require.Error(t, err)
}

func TestMoveFromDeprecatedInsertsThenDeletes(t *testing.T) {
	db, script := storetest.New()
	defer db.Close()
	h := store.NewHandle(db, nil)

	var sawInsert, sawDelete bool
	script.On(func(query string, args []driver.Value) (storetest.Result, error) {
		switch {
		case strings.HasPrefix(query, "INSERT INTO object"):
			sawInsert = true
			return storetest.Result{RowsAffected: 1}, nil
		case strings.HasPrefix(query, "DELETE FROM deprecated_object"):
			sawDelete = true
			require.True(t, sawInsert, "delete must run after insert")
			return storetest.Result{RowsAffected: 1}, nil
		}
		return storetest.Result{}, storetest.ErrNoMatch
	})

	dep := entity.DeprecatedObject{OID: "o1", UUID: "u1", Version: 1, DeprecTime: time.Unix(1700000000, 0).UTC()}
	err := MoveFromDeprecated(context.Background(), h, dep)
	require.NoError(t, err)
	require.True(t, sawInsert)
	require.True(t, sawDelete)
}
