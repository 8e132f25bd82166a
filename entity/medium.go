package entity

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cea-hpc/phobos-sub000/dsserr"
)

// Medium update bits (spec §4.C). MediumStatsBit is handled outside
// UpdateQuery: a stats update goes through MergeStats and UpdateStatsQuery
// below, under the lock-and-retry sequence in crud.UpdateMediumStats, not
// a plain SQL SET.
const (
	MediumAdminStatusBit FieldMask = 1 << iota
	MediumFSStatusBit
	MediumFSLabelBit
	MediumTagsBit
	MediumGroupingsBit
	MediumPutAccessBit
	MediumGetAccessBit
	MediumDelAccessBit
	MediumLibraryBit
	MediumStatsBit
)

// MediumCodec implements the entity codec contract for the medium table.
type MediumCodec struct{}

const mediumTable = "medium"
const mediumColumns = "family, name, library, model, adm_status, fs_type, fs_status, fs_label, addr_type, " +
	"put_access, get_access, delete_access, num_objects, logical_used, physical_used, physical_free, " +
	"num_load, num_errors, last_load, tags, groupings"

func (MediumCodec) Size() int { return 160 }

func (MediumCodec) InsertQuery(items []Medium) (string, []interface{}, error) {
	if len(items) == 0 {
		return "", nil, dsserr.Kindf(dsserr.InvalidData, "insert requires at least one medium")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", mediumTable, mediumColumns)
	args := make([]interface{}, 0, len(items)*21)
	for i, m := range items {
		if i > 0 {
			b.WriteString(", ")
		}
		tags, err := json.Marshal(m.Tags)
		if err != nil {
			return "", nil, dsserr.Wrap(dsserr.InvalidData, err, "encode medium tags")
		}
		groupings, err := json.Marshal(m.Groupings)
		if err != nil {
			return "", nil, dsserr.Wrap(dsserr.InvalidData, err, "encode medium groupings")
		}
		n := len(args)
		ph := make([]string, 21)
		for k := range ph {
			ph[k] = fmt.Sprintf("$%d", n+k+1)
		}
		fmt.Fprintf(&b, "(%s)", strings.Join(ph, ", "))
		args = append(args,
			m.ID.Family, m.ID.Name, m.ID.Library, m.Model, m.AdminState, m.FSType, m.FSStatus, m.FSLabel, m.AddrType,
			m.PutAccess, m.GetAccess, m.DelAccess,
			m.Stats.NumObjects, m.Stats.LogicalUsed, m.Stats.PhysicalUsed, m.Stats.PhysicalFree,
			m.Stats.NumLoad, m.Stats.NumErrors, m.Stats.LastLoad, tags, groupings,
		)
	}
	return b.String(), args, nil
}

// UpdateQuery builds the plain-SQL medium update for every bit except
// MediumStatsBit, which callers route through UpdateStatsQuery after the
// lock-and-merge sequence (spec §4.C).
func (MediumCodec) UpdateQuery(src, dst Medium, mask FieldMask) (string, []interface{}, error) {
	if mask == 0 {
		return "", nil, dsserr.Kindf(dsserr.InvalidData, "update requires at least one field bit")
	}
	if mask.Has(MediumStatsBit) {
		return "", nil, dsserr.Kindf(dsserr.NotSupported, "stats update requires UpdateStatsQuery after lock-and-merge")
	}
	var sets []string
	var args []interface{}
	add := func(col string, v interface{}) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if mask.Has(MediumAdminStatusBit) {
		add("adm_status", dst.AdminState)
	}
	if mask.Has(MediumFSStatusBit) {
		add("fs_status", dst.FSStatus)
	}
	if mask.Has(MediumFSLabelBit) {
		add("fs_label", dst.FSLabel)
	}
	if mask.Has(MediumTagsBit) {
		tags, err := json.Marshal(dst.Tags)
		if err != nil {
			return "", nil, dsserr.Wrap(dsserr.InvalidData, err, "encode medium tags")
		}
		add("tags", tags)
	}
	if mask.Has(MediumGroupingsBit) {
		groupings, err := json.Marshal(dst.Groupings)
		if err != nil {
			return "", nil, dsserr.Wrap(dsserr.InvalidData, err, "encode medium groupings")
		}
		add("groupings", groupings)
	}
	if mask.Has(MediumPutAccessBit) {
		add("put_access", dst.PutAccess)
	}
	if mask.Has(MediumGetAccessBit) {
		add("get_access", dst.GetAccess)
	}
	if mask.Has(MediumDelAccessBit) {
		add("delete_access", dst.DelAccess)
	}
	if mask.Has(MediumLibraryBit) {
		add("library", dst.ID.Library)
	}
	if len(sets) == 0 {
		return "", nil, dsserr.Kindf(dsserr.InvalidData, "update mask selected no recognized bit")
	}
	args = append(args, src.ID.Family, src.ID.Name, src.ID.Library)
	stmt := fmt.Sprintf("UPDATE %s SET %s WHERE family = $%d AND name = $%d AND library = $%d",
		mediumTable, strings.Join(sets, ", "), len(args)-2, len(args)-1, len(args))
	return stmt, args, nil
}

// UpdateStatsQuery builds the SET clause that writes an already-merged
// MediumStats back to ref. Callers compute merged via MergeStats while
// holding the medium-update lock (spec §4.C, §4.E).
func (MediumCodec) UpdateStatsQuery(ref MediumRef, merged MediumStats) (string, []interface{}, error) {
	stmt := fmt.Sprintf(`UPDATE %s SET num_objects = $1, logical_used = $2, physical_used = $3,
		physical_free = $4, num_load = $5, num_errors = $6, last_load = $7
		WHERE family = $8 AND name = $9 AND library = $10`, mediumTable)
	args := []interface{}{
		merged.NumObjects, merged.LogicalUsed, merged.PhysicalUsed, merged.PhysicalFree,
		merged.NumLoad, merged.NumErrors, merged.LastLoad,
		ref.Family, ref.Name, ref.Library,
	}
	return stmt, args, nil
}

func (MediumCodec) SelectQuery(pred1, pred2 string, sort *Sort) (string, []interface{}, error) {
	if pred2 != "" {
		return "", nil, dsserr.Kindf(dsserr.NotSupported, "medium select takes at most one predicate fragment")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", mediumColumns, mediumTable)
	if pred1 != "" {
		fmt.Fprintf(&b, " WHERE %s", pred1)
	}
	if sort != nil {
		fmt.Fprintf(&b, " ORDER BY %s %s", sortColumn(sort.Field), sortDirection(sort.Order))
	}
	return b.String(), nil, nil
}

func (MediumCodec) DeleteQuery(items []Medium) (string, []interface{}, error) {
	if len(items) == 0 {
		return "", nil, dsserr.Kindf(dsserr.InvalidData, "delete requires at least one medium")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "DELETE FROM %s WHERE (family, name, library) IN (", mediumTable)
	args := make([]interface{}, 0, len(items)*3)
	for i, m := range items {
		if i > 0 {
			b.WriteString(", ")
		}
		n := len(args)
		fmt.Fprintf(&b, "($%d, $%d, $%d)", n+1, n+2, n+3)
		args = append(args, m.ID.Family, m.ID.Name, m.ID.Library)
	}
	b.WriteString(")")
	return b.String(), args, nil
}

func (MediumCodec) FromRow(rows *sql.Rows) (Medium, error) {
	var m Medium
	var tags, groupings []byte
	err := rows.Scan(
		&m.ID.Family, &m.ID.Name, &m.ID.Library, &m.Model, &m.AdminState, &m.FSType, &m.FSStatus, &m.FSLabel, &m.AddrType,
		&m.PutAccess, &m.GetAccess, &m.DelAccess,
		&m.Stats.NumObjects, &m.Stats.LogicalUsed, &m.Stats.PhysicalUsed, &m.Stats.PhysicalFree,
		&m.Stats.NumLoad, &m.Stats.NumErrors, &m.Stats.LastLoad, &tags, &groupings,
	)
	if err != nil {
		return Medium{}, dsserr.Wrap(dsserr.InvalidData, err, "decode medium row")
	}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &m.Tags); err != nil {
			return Medium{}, dsserr.Wrap(dsserr.InvalidData, err, "decode medium tags")
		}
	}
	if len(groupings) > 0 {
		if err := json.Unmarshal(groupings, &m.Groupings); err != nil {
			return Medium{}, dsserr.Wrap(dsserr.InvalidData, err, "decode medium groupings")
		}
	}
	return m, nil
}

// StatFieldUpdate is one stat column's update request: Set replaces the
// current value, Add accumulates onto it; both may be given, Set applies
// first (spec §4.C: "absolute vs. additive variants per stat field").
type StatFieldUpdate struct {
	Set *int64
	Add *int64
}

// StatsUpdate is the incoming delta a stats update merges into a medium's
// current row (spec §4.C).
type StatsUpdate struct {
	NumObjects   StatFieldUpdate
	LogicalUsed  StatFieldUpdate
	PhysicalUsed StatFieldUpdate
	PhysicalFree StatFieldUpdate
	NumLoad      StatFieldUpdate
	NumErrors    StatFieldUpdate
	LastLoad     *time.Time
}

func applyStatField(cur int64, u StatFieldUpdate) int64 {
	v := cur
	if u.Set != nil {
		v = *u.Set
	}
	if u.Add != nil {
		v += *u.Add
	}
	if v < 0 {
		v = 0
	}
	return v
}

// MergeStats applies upd onto current under the absolute/additive rule,
// clamping every field to a nonnegative value (spec §4.C). It is a pure
// function: the caller is responsible for reading current and writing the
// result back while holding the medium-update lock (spec §4.E).
func MergeStats(current MediumStats, upd StatsUpdate) MediumStats {
	merged := MediumStats{
		NumObjects:   applyStatField(current.NumObjects, upd.NumObjects),
		LogicalUsed:  applyStatField(current.LogicalUsed, upd.LogicalUsed),
		PhysicalUsed: applyStatField(current.PhysicalUsed, upd.PhysicalUsed),
		PhysicalFree: applyStatField(current.PhysicalFree, upd.PhysicalFree),
		NumLoad:      applyStatField(current.NumLoad, upd.NumLoad),
		NumErrors:    applyStatField(current.NumErrors, upd.NumErrors),
		LastLoad:     current.LastLoad,
	}
	if upd.LastLoad != nil {
		merged.LastLoad = *upd.LastLoad
	}
	return merged
}
