package crud

import (
	"context"
	"database/sql/driver"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cea-hpc/phobos-sub000/dsserr"
	"github.com/cea-hpc/phobos-sub000/entity"
	"github.com/cea-hpc/phobos-sub000/internal/storetest"
	"github.com/cea-hpc/phobos-sub000/store"
)

func objectRow(oid, uuid string, version int) []driver.Value {
	return []driver.Value{oid, uuid, int64(version), []byte(`{}`), "g", int64(0), time.Unix(0, 0)}
}

func TestGetDecodesAllRows(t *testing.T) {
	db, script := storetest.New()
	defer db.Close()
	h := store.NewHandle(db, nil)

	script.On(func(query string, args []driver.Value) (storetest.Result, error) {
		require.True(t, strings.HasPrefix(query, "SELECT"))
		return storetest.Result{
			Columns: []string{"oid", "object_uuid", "version", "user_md", "grouping_label", "size", "creation_time"},
			Rows:    [][]driver.Value{objectRow("o1", "u1", 1), objectRow("o2", "u2", 1)},
		}, nil
	})

	got, err := Get[entity.Object](context.Background(), h, entity.ObjectCodec{}, "", "", nil)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "o1", got[0].OID)
	require.Equal(t, "o2", got[1].OID)
}

func TestGetReturnsPartialPrefixOnDecodeError(t *testing.T) {
	db, script := storetest.New()
	defer db.Close()
	h := store.NewHandle(db, nil)

	script.On(func(query string, args []driver.Value) (storetest.Result, error) {
		return storetest.Result{
			Columns: []string{"oid", "object_uuid", "version", "user_md", "grouping_label", "size", "creation_time"},
			Rows: [][]driver.Value{
				objectRow("o1", "u1", 1),
				{"bad-row-too-few-columns"},
			},
		}, nil
	})

	got, err := Get[entity.Object](context.Background(), h, entity.ObjectCodec{}, "", "", nil)
	require.Error(t, err)
	require.Len(t, got, 1, "the already-decoded prefix must still be returned alongside the error")
	require.Equal(t, "o1", got[0].OID)
}

func TestInsertRejectsEmptyBatch(t *testing.T) {
	db, _ := storetest.New()
	defer db.Close()
	h := store.NewHandle(db, nil)

	err := Insert[entity.Object](context.Background(), h, entity.ObjectCodec{}, nil)
	require.Error(t, err)
	require.Equal(t, dsserr.InvalidData, dsserr.KindOf(err))
}

func TestInsertRunsInsideOneTransaction(t *testing.T) {
	db, script := storetest.New()
	defer db.Close()
	h := store.NewHandle(db, nil)

	var sawInsert bool
	script.On(func(query string, args []driver.Value) (storetest.Result, error) {
		if strings.HasPrefix(query, "INSERT INTO object") {
			sawInsert = true
			return storetest.Result{RowsAffected: 1}, nil
		}
		return storetest.Result{}, storetest.ErrNoMatch
	})

	items := []entity.Object{{OID: "o1", UUID: "u1", Version: 1, Grouping: "g", Size: 1, CreationTime: time.Unix(0, 0)}}
	err := Insert[entity.Object](context.Background(), h, entity.ObjectCodec{}, items)
	require.NoError(t, err)
	require.True(t, sawInsert)
}

func TestDeleteRejectsEmptyBatch(t *testing.T) {
	db, _ := storetest.New()
	defer db.Close()
	h := store.NewHandle(db, nil)

	err := Delete[entity.Object](context.Background(), h, entity.ObjectCodec{}, nil)
	require.Error(t, err)
	require.Equal(t, dsserr.InvalidData, dsserr.KindOf(err))
}

func TestDeleteRunsDeleteStatement(t *testing.T) {
	db, script := storetest.New()
	defer db.Close()
	h := store.NewHandle(db, nil)

	var sawDelete bool
	script.On(func(query string, args []driver.Value) (storetest.Result, error) {
		if strings.HasPrefix(query, "DELETE FROM object") {
			sawDelete = true
			return storetest.Result{RowsAffected: 1}, nil
		}
		return storetest.Result{}, storetest.ErrNoMatch
	})

	items := []entity.Object{{OID: "o1"}}
	err := Delete[entity.Object](context.Background(), h, entity.ObjectCodec{}, items)
	require.NoError(t, err)
	require.True(t, sawDelete)
}

func TestUpdateWithZeroMaskIsNoOpAndOpensNoTransaction(t *testing.T) {
	db, script := storetest.New()
	defer db.Close()
	h := store.NewHandle(db, nil)

	script.On(func(query string, args []driver.Value) (storetest.Result, error) {
		t.Fatalf("zero mask must not issue any statement, got %q", query)
		return storetest.Result{}, nil
	})

	err := Update[entity.Object](context.Background(), h, entity.ObjectCodec{},
		[]entity.Object{{OID: "o1"}}, []entity.Object{{OID: "o1"}}, 0)
	require.NoError(t, err)
}

func TestUpdateRejectsMismatchedLengths(t *testing.T) {
	db, _ := storetest.New()
	defer db.Close()
	h := store.NewHandle(db, nil)

	err := Update[entity.Object](context.Background(), h, entity.ObjectCodec{},
		[]entity.Object{{OID: "o1"}, {OID: "o2"}}, []entity.Object{{OID: "o1"}}, entity.ObjectOID)
	require.Error(t, err)
	require.Equal(t, dsserr.InvalidData, dsserr.KindOf(err))
}

func TestUpdateRunsOneStatementPerItem(t *testing.T) {
	db, script := storetest.New()
	defer db.Close()
	h := store.NewHandle(db, nil)

	var updates int
	script.On(func(query string, args []driver.Value) (storetest.Result, error) {
		if strings.HasPrefix(query, "UPDATE object") {
			updates++
			return storetest.Result{RowsAffected: 1}, nil
		}
		return storetest.Result{}, storetest.ErrNoMatch
	})

	src := []entity.Object{{OID: "o1"}, {OID: "o2"}}
	dst := []entity.Object{{OID: "o1-new"}, {OID: "o2-new"}}
	err := Update[entity.Object](context.Background(), h, entity.ObjectCodec{}, src, dst, entity.ObjectOID)
	require.NoError(t, err)
	require.Equal(t, 2, updates)
}
