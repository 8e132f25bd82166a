package crud

import (
	"context"
	"database/sql/driver"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cea-hpc/phobos-sub000/entity"
	"github.com/cea-hpc/phobos-sub000/internal/storetest"
	"github.com/cea-hpc/phobos-sub000/store"
)

func TestMigrateExtentRepointsLayoutAndFlipsStates(t *testing.T) {
	db, script := storetest.New()
	defer db.Close()
	h := store.NewHandle(db, nil)

	var repointArgs, orphanArgs, syncArgs []driver.Value
	script.On(func(query string, args []driver.Value) (storetest.Result, error) {
		switch {
		case strings.HasPrefix(query, "UPDATE layout"):
			repointArgs = args
			return storetest.Result{RowsAffected: 2}, nil
		case strings.HasPrefix(query, "UPDATE extent"):
			if args[0] == string(entity.ExtentOrphan) {
				orphanArgs = args
			} else {
				syncArgs = args
			}
			return storetest.Result{RowsAffected: 1}, nil
		}
		return storetest.Result{}, storetest.ErrNoMatch
	})

	err := MigrateExtent(context.Background(), h, "old-uuid", "new-uuid")
	require.NoError(t, err)
	require.Equal(t, []driver.Value{"new-uuid", "old-uuid"}, repointArgs)
	require.NotNil(t, orphanArgs, "old extent must be marked orphan")
	require.Equal(t, "old-uuid", orphanArgs[1])
	require.NotNil(t, syncArgs, "new extent must be marked sync")
	require.Equal(t, "new-uuid", syncArgs[1])
}

func TestMigrateExtentFailsWhenNewExtentMissing(t *testing.T) {
	db, script := storetest.New()
	defer db.Close()
	h := store.NewHandle(db, nil)

	script.On(func(query string, args []driver.Value) (storetest.Result, error) {
		switch {
		case strings.HasPrefix(query, "UPDATE layout"):
			return storetest.Result{RowsAffected: 1}, nil
		case strings.HasPrefix(query, "UPDATE extent"):
			if args[0] == string(entity.ExtentOrphan) {
				return storetest.Result{RowsAffected: 1}, nil
			}
			return storetest.Result{RowsAffected: 0}, nil
		}
		return storetest.Result{}, storetest.ErrNoMatch
	})

	err := MigrateExtent(context.Background(), h, "old-uuid", "missing-new-uuid")
	require.Error(t, err)
}
