package entity

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cea-hpc/phobos-sub000/dsserr"
)

// LayoutEntryCodec implements the entity codec contract for the layout
// mapping table. Layout entries are immutable once written — a copy's
// extent list is replaced by delete-then-insert, never updated in place —
// so UpdateQuery always fails NotSupported (spec §4.C).
type LayoutEntryCodec struct{}

const layoutTable = "layout"
const layoutColumns = "object_uuid, version, copy_name, extent_uuid, layout_index"

func (LayoutEntryCodec) Size() int { return 48 }

func (LayoutEntryCodec) InsertQuery(items []LayoutEntry) (string, []interface{}, error) {
	if len(items) == 0 {
		return "", nil, dsserr.Kindf(dsserr.InvalidData, "insert requires at least one layout entry")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", layoutTable, layoutColumns)
	args := make([]interface{}, 0, len(items)*5)
	for i, e := range items {
		if i > 0 {
			b.WriteString(", ")
		}
		n := len(args)
		fmt.Fprintf(&b, "($%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5)
		args = append(args, e.ObjectUUID, e.Version, e.CopyName, e.ExtentUUID, e.LayoutIndex)
	}
	return b.String(), args, nil
}

func (LayoutEntryCodec) UpdateQuery(src, dst LayoutEntry, mask FieldMask) (string, []interface{}, error) {
	return "", nil, dsserr.Kindf(dsserr.NotSupported, "layout entries are immutable, replace via delete+insert")
}

func (LayoutEntryCodec) SelectQuery(pred1, pred2 string, sort *Sort) (string, []interface{}, error) {
	if pred2 != "" {
		return "", nil, dsserr.Kindf(dsserr.NotSupported, "layout entry select takes at most one predicate fragment")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", layoutColumns, layoutTable)
	if pred1 != "" {
		fmt.Fprintf(&b, " WHERE %s", pred1)
	}
	b.WriteString(" ORDER BY layout_index ASC")
	return b.String(), nil, nil
}

func (LayoutEntryCodec) DeleteQuery(items []LayoutEntry) (string, []interface{}, error) {
	if len(items) == 0 {
		return "", nil, dsserr.Kindf(dsserr.InvalidData, "delete requires at least one layout entry")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "DELETE FROM %s WHERE (object_uuid, version, copy_name, extent_uuid) IN (", layoutTable)
	args := make([]interface{}, 0, len(items)*4)
	for i, e := range items {
		if i > 0 {
			b.WriteString(", ")
		}
		n := len(args)
		fmt.Fprintf(&b, "($%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4)
		args = append(args, e.ObjectUUID, e.Version, e.CopyName, e.ExtentUUID)
	}
	b.WriteString(")")
	return b.String(), args, nil
}

func (LayoutEntryCodec) FromRow(rows *sql.Rows) (LayoutEntry, error) {
	var e LayoutEntry
	if err := rows.Scan(&e.ObjectUUID, &e.Version, &e.CopyName, &e.ExtentUUID, &e.LayoutIndex); err != nil {
		return LayoutEntry{}, dsserr.Wrap(dsserr.InvalidData, err, "decode layout entry row")
	}
	return e, nil
}

// extentAgg is the JSON shape one aggregated extent element takes in the
// full layout select's json_agg output.
type extentAgg struct {
	UUID         string          `json:"uuid"`
	Size         int64           `json:"size"`
	Offset       int64           `json:"offset"`
	State        string          `json:"state"`
	MediumFamily string          `json:"medium_family"`
	MediumName   string          `json:"medium_name"`
	MediumLib    string          `json:"medium_library"`
	Address      string          `json:"address"`
	Hash         json.RawMessage `json:"hash"`
	Info         json.RawMessage `json:"info"`
	CreationTime time.Time       `json:"creation_time"`
}

// FullLayoutQuery builds the joined select described by spec §4.C: extents
// for each matching copy are aggregated into a single JSON array column,
// ordered by layout_index, one result row per copy.
func FullLayoutQuery(pred1, pred2 string) (string, []interface{}, error) {
	const stmt = `
SELECT c.object_uuid, c.version, c.copy_name,
       COALESCE(
         json_agg(json_build_object(
           'uuid', e.extent_uuid, 'size', e.size, 'offset', e.offset,
           'state', e.state, 'medium_family', e.medium_family,
           'medium_name', e.medium_name, 'medium_library', e.medium_library,
           'address', e.address, 'hash', e.hash, 'info', e.info,
           'creation_time', e.creation_time
         ) ORDER BY l.layout_index), '[]'
       ) AS extents
FROM copy c
JOIN layout l ON l.object_uuid = c.object_uuid AND l.version = c.version AND l.copy_name = c.copy_name
JOIN extent e ON e.extent_uuid = l.extent_uuid
%s
GROUP BY c.object_uuid, c.version, c.copy_name`

	where := ""
	if pred1 != "" {
		where = "WHERE " + pred1
		if pred2 != "" {
			where += " AND " + pred2
		}
	} else if pred2 != "" {
		where = "WHERE " + pred2
	}
	return fmt.Sprintf(stmt, where), nil, nil
}

// DecodeFullLayoutRow decodes one row produced by FullLayoutQuery.
func DecodeFullLayoutRow(rows *sql.Rows) (Layout, error) {
	var l Layout
	var raw []byte
	if err := rows.Scan(&l.ObjectUUID, &l.Version, &l.CopyName, &raw); err != nil {
		return Layout{}, dsserr.Wrap(dsserr.InvalidData, err, "decode layout row")
	}
	var aggs []extentAgg
	if err := json.Unmarshal(raw, &aggs); err != nil {
		return Layout{}, dsserr.Wrap(dsserr.InvalidData, err, "decode aggregated extent list")
	}
	l.Extents = make([]Extent, 0, len(aggs))
	for _, a := range aggs {
		h, err := DecodeHash(a.Hash)
		if err != nil {
			return Layout{}, err
		}
		l.Extents = append(l.Extents, Extent{
			UUID:   a.UUID,
			Size:   a.Size,
			Offset: a.Offset,
			State:  ExtentState(a.State),
			Medium: MediumRef{Family: a.MediumFamily, Name: a.MediumName, Library: a.MediumLib},
			Address: a.Address,
			Hash:    h,
			Info:    a.Info,
			CreationTime: a.CreationTime,
		})
	}
	return l, nil
}
