package entity

import (
	"strings"
	"testing"
	"time"
)

func int64p(v int64) *int64 { return &v }

func TestMergeStatsAbsoluteAndAdditive(t *testing.T) {
	current := MediumStats{NumObjects: 10, LogicalUsed: 100, NumErrors: 2}
	upd := StatsUpdate{
		NumObjects:  StatFieldUpdate{Set: int64p(5)},  // absolute replace
		LogicalUsed: StatFieldUpdate{Add: int64p(50)}, // additive
		NumErrors:   StatFieldUpdate{Add: int64p(1)},
	}
	got := MergeStats(current, upd)
	if got.NumObjects != 5 {
		t.Errorf("NumObjects = %d, want 5 (absolute replace)", got.NumObjects)
	}
	if got.LogicalUsed != 150 {
		t.Errorf("LogicalUsed = %d, want 150 (additive)", got.LogicalUsed)
	}
	if got.NumErrors != 3 {
		t.Errorf("NumErrors = %d, want 3", got.NumErrors)
	}
	// untouched field carries over unchanged
	if got.PhysicalUsed != current.PhysicalUsed {
		t.Errorf("PhysicalUsed changed unexpectedly: %d", got.PhysicalUsed)
	}
}

func TestMergeStatsClampsToZero(t *testing.T) {
	current := MediumStats{PhysicalFree: 10}
	upd := StatsUpdate{PhysicalFree: StatFieldUpdate{Add: int64p(-50)}}
	got := MergeStats(current, upd)
	if got.PhysicalFree != 0 {
		t.Errorf("PhysicalFree = %d, want 0 (clamped)", got.PhysicalFree)
	}
}

func TestMergeStatsSetThenAdd(t *testing.T) {
	current := MediumStats{NumLoad: 99}
	upd := StatsUpdate{NumLoad: StatFieldUpdate{Set: int64p(10), Add: int64p(1)}}
	got := MergeStats(current, upd)
	if got.NumLoad != 11 {
		t.Errorf("NumLoad = %d, want 11 (Set applies before Add)", got.NumLoad)
	}
}

func TestMergeStatsLastLoad(t *testing.T) {
	now := time.Unix(1700000000, 0)
	current := MediumStats{}
	got := MergeStats(current, StatsUpdate{LastLoad: &now})
	if !got.LastLoad.Equal(now) {
		t.Errorf("LastLoad = %v, want %v", got.LastLoad, now)
	}
}

func TestMediumUpdateQueryRejectsStatsBit(t *testing.T) {
	_, _, err := MediumCodec{}.UpdateQuery(Medium{}, Medium{}, MediumStatsBit)
	if err == nil {
		t.Error("MediumStatsBit must be rejected by UpdateQuery")
	}
}

func TestMediumUpdateQueryAdminStatus(t *testing.T) {
	stmt, args, err := MediumCodec{}.UpdateQuery(
		Medium{ID: MediumRef{Family: "tape", Name: "m1", Library: "lib"}},
		Medium{AdminState: AdminLocked},
		MediumAdminStatusBit,
	)
	if err != nil {
		t.Fatalf("UpdateQuery() error = %v", err)
	}
	if !strings.Contains(stmt, "adm_status = $1") {
		t.Errorf("stmt = %q", stmt)
	}
	if args[0] != AdminLocked {
		t.Errorf("args[0] = %v, want AdminLocked", args[0])
	}
}

func TestMediumUpdateStatsQuery(t *testing.T) {
	ref := MediumRef{Family: "tape", Name: "m1", Library: "lib"}
	merged := MediumStats{NumObjects: 3}
	stmt, args, err := MediumCodec{}.UpdateStatsQuery(ref, merged)
	if err != nil {
		t.Fatalf("UpdateStatsQuery() error = %v", err)
	}
	if !strings.Contains(stmt, "num_objects = $1") {
		t.Errorf("stmt = %q", stmt)
	}
	if args[0] != int64(3) {
		t.Errorf("args[0] = %v, want 3", args[0])
	}
}
