package health

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cea-hpc/phobos-sub000/entity"
	"github.com/cea-hpc/phobos-sub000/internal/storetest"
	"github.com/cea-hpc/phobos-sub000/store"
)

func logRow(errno int, t time.Time) []driver.Value {
	return []driver.Value{"tape", "dev1", "lib", "tape", "med1", "lib", int64(errno), "device_load", []byte(`{}`), t}
}

func TestHealthSkipsLeadingSuccessesThenTracksErrors(t *testing.T) {
	db, script := storetest.New()
	defer db.Close()
	h := store.NewHandle(db, nil)

	base := time.Unix(1700000000, 0).UTC()
	rows := [][]driver.Value{
		logRow(0, base),                      // skipped: before first error
		logRow(0, base.Add(1*time.Second)),   // skipped: before first error
		logRow(1, base.Add(2*time.Second)),   // first error: health 10 -> 9
		logRow(1, base.Add(3*time.Second)),   // health 9 -> 8
		logRow(0, base.Add(4*time.Second)),   // health 8 -> 9
	}
	script.On(func(query string, args []driver.Value) (storetest.Result, error) {
		if strings.HasPrefix(query, "SELECT") {
			return storetest.Result{
				Columns: []string{"device_family", "device_name", "device_library", "medium_family", "medium_name", "medium_library", "errno", "cause", "message", "time"},
				Rows:    rows,
			}, nil
		}
		return storetest.Result{}, storetest.ErrNoMatch
	})

	got, err := Health(context.Background(), h, KindDevice, entity.MediumRef{Family: "tape", Name: "dev1", Library: "lib"}, 10)
	require.NoError(t, err)
	require.Equal(t, 9, got)
}

func TestHealthClampsAtMax(t *testing.T) {
	db, script := storetest.New()
	defer db.Close()
	h := store.NewHandle(db, nil)

	base := time.Unix(1700000000, 0).UTC()
	rows := [][]driver.Value{
		logRow(1, base),
		logRow(0, base.Add(1*time.Second)),
		logRow(0, base.Add(2*time.Second)),
		logRow(0, base.Add(3*time.Second)),
	}
	script.On(func(query string, args []driver.Value) (storetest.Result, error) {
		return storetest.Result{
			Columns: []string{"device_family", "device_name", "device_library", "medium_family", "medium_name", "medium_library", "errno", "cause", "message", "time"},
			Rows:    rows,
		}, nil
	})

	got, err := Health(context.Background(), h, KindMedium, entity.MediumRef{Family: "tape", Name: "med1", Library: "lib"}, 2)
	require.NoError(t, err)
	require.Equal(t, 2, got, "health must clamp at max_health, not grow past it")
}

func TestHealthRejectsNegativeMax(t *testing.T) {
	db, _ := storetest.New()
	defer db.Close()
	h := store.NewHandle(db, nil)
	_, err := Health(context.Background(), h, KindDevice, entity.MediumRef{}, -1)
	require.Error(t, err)
}

func TestEmitSkipsWhenSkeletonSaysNotToLog(t *testing.T) {
	db, script := storetest.New()
	defer db.Close()
	h := store.NewHandle(db, nil)
	script.On(func(query string, args []driver.Value) (storetest.Result, error) {
		t.Fatalf("Emit must not issue any statement when ShouldLog is false, got %q", query)
		return storetest.Result{}, nil
	})
	err := Emit(context.Background(), h, entity.CauseDeviceLoad, 0, Skeleton{ShouldLog: false})
	require.NoError(t, err)
}

func TestEmitWrapsMessageOnActionMismatch(t *testing.T) {
	db, script := storetest.New()
	defer db.Close()
	h := store.NewHandle(db, nil)

	var gotMessage []byte
	script.On(func(query string, args []driver.Value) (storetest.Result, error) {
		if strings.HasPrefix(query, "INSERT INTO log") {
			gotMessage = args[8].([]byte)
			return storetest.Result{RowsAffected: 1}, nil
		}
		return storetest.Result{}, storetest.ErrNoMatch
	})

	skeleton := Skeleton{
		Cause:     entity.CauseDeviceLoad,
		ShouldLog: true,
		Message:   []byte(`{"detail":"load failed"}`),
	}
	err := Emit(context.Background(), h, entity.CauseObjectGet, 5, skeleton)
	require.NoError(t, err)

	var wrapped map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(gotMessage, &wrapped))
	require.Contains(t, wrapped, string(entity.CauseObjectGet))
}

func TestEmitDoesNotWrapOnMatchingCause(t *testing.T) {
	db, script := storetest.New()
	defer db.Close()
	h := store.NewHandle(db, nil)

	var gotMessage []byte
	script.On(func(query string, args []driver.Value) (storetest.Result, error) {
		if strings.HasPrefix(query, "INSERT INTO log") {
			gotMessage = args[8].([]byte)
			return storetest.Result{RowsAffected: 1}, nil
		}
		return storetest.Result{}, storetest.ErrNoMatch
	})

	skeleton := Skeleton{
		Cause:     entity.CauseDeviceLoad,
		ShouldLog: true,
		Message:   []byte(`{"detail":"load failed"}`),
	}
	err := Emit(context.Background(), h, entity.CauseDeviceLoad, 5, skeleton)
	require.NoError(t, err)
	require.JSONEq(t, `{"detail":"load failed"}`, string(gotMessage))
}
