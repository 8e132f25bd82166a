package entity

import (
	"context"
	"database/sql/driver"
	"strings"
	"testing"
	"time"

	"github.com/cea-hpc/phobos-sub000/internal/storetest"
)

func TestObjectInsertQueryShape(t *testing.T) {
	stmt, args, err := ObjectCodec{}.InsertQuery([]Object{
		{OID: "o1", UUID: "u1", Version: 1, Grouping: "g", Size: 10, CreationTime: time.Unix(0, 0)},
		{OID: "o2", UUID: "u2", Version: 1, Grouping: "g", Size: 20, CreationTime: time.Unix(0, 0)},
	})
	if err != nil {
		t.Fatalf("InsertQuery() error = %v", err)
	}
	if !strings.Contains(stmt, "INSERT INTO object") {
		t.Errorf("stmt = %q, missing table", stmt)
	}
	if strings.Count(stmt, "(") != 3 { // one for the column list, one per row
		t.Errorf("stmt = %q, want 2 value tuples", stmt)
	}
	if len(args) != 14 {
		t.Errorf("len(args) = %d, want 14", len(args))
	}
}

func TestObjectInsertQueryRejectsEmpty(t *testing.T) {
	if _, _, err := (ObjectCodec{}).InsertQuery(nil); err == nil {
		t.Error("InsertQuery(nil) should fail")
	}
}

func TestObjectUpdateQueryRename(t *testing.T) {
	stmt, args, err := ObjectCodec{}.UpdateQuery(
		Object{OID: "old-name"},
		Object{OID: "new-name"},
		ObjectOID,
	)
	if err != nil {
		t.Fatalf("UpdateQuery() error = %v", err)
	}
	if !strings.Contains(stmt, "SET oid = $1") {
		t.Errorf("stmt = %q", stmt)
	}
	if args[0] != "new-name" || args[1] != "old-name" {
		t.Errorf("args = %v", args)
	}
}

func TestObjectUpdateQueryRejectsUnsupportedBit(t *testing.T) {
	_, _, err := ObjectCodec{}.UpdateQuery(Object{}, Object{}, FieldMask(1<<30))
	if err == nil {
		t.Error("expected NotSupported for a bit other than ObjectOID")
	}
}

func TestObjectSelectQueryRejectsSecondPredicate(t *testing.T) {
	_, _, err := ObjectCodec{}.SelectQuery("oid = 'a'", "version = 1", nil)
	if err == nil {
		t.Error("object is single-table, a second predicate fragment must fail")
	}
}

func TestObjectFromRowRoundTrip(t *testing.T) {
	db, script := storetest.New()
	defer db.Close()

	now := time.Unix(1700000000, 0).UTC()
	script.On(func(query string, args []driver.Value) (storetest.Result, error) {
		return storetest.Result{
			Columns: []string{"oid", "object_uuid", "version", "user_md", "grouping_label", "size", "creation_time"},
			Rows: [][]driver.Value{
				{"o1", "u1", int64(1), []byte(`{"k":"v"}`), "g", int64(42), now},
			},
		}, nil
	})

	rows, err := db.QueryContext(context.Background(), "SELECT "+objectColumns+" FROM object")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	defer rows.Close()

	if !rows.Next() {
		t.Fatal("expected one row")
	}
	o, err := ObjectCodec{}.FromRow(rows)
	if err != nil {
		t.Fatalf("FromRow() error = %v", err)
	}
	if o.OID != "o1" || o.UUID != "u1" || o.Version != 1 || o.Size != 42 {
		t.Errorf("decoded object = %+v", o)
	}
	if !o.CreationTime.Equal(now) {
		t.Errorf("CreationTime = %v, want %v", o.CreationTime, now)
	}
}
