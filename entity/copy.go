package entity

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/cea-hpc/phobos-sub000/dsserr"
)

// Copy update bits (spec §4.C).
const (
	CopyStatusBit FieldMask = 1 << iota
	CopyAccessTimeBit
	CopyLayoutInfoBit
)

// CopyCodec implements the entity codec contract for the copy table.
type CopyCodec struct{}

const copyTable = "copy"
const copyColumns = "object_uuid, version, copy_name, copy_status, creation_time, access_time, layout_info"

func (CopyCodec) Size() int { return 72 }

func (CopyCodec) InsertQuery(items []Copy) (string, []interface{}, error) {
	if len(items) == 0 {
		return "", nil, dsserr.Kindf(dsserr.InvalidData, "insert requires at least one copy")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", copyTable, copyColumns)
	args := make([]interface{}, 0, len(items)*7)
	for i, c := range items {
		if i > 0 {
			b.WriteString(", ")
		}
		n := len(args)
		fmt.Fprintf(&b, "($%d, $%d, $%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5, n+6, n+7)
		args = append(args, c.ObjectUUID, c.Version, c.CopyName, c.CopyStatus, c.CreationTime, c.AccessTime, c.LayoutInfo)
	}
	return b.String(), args, nil
}

func (CopyCodec) UpdateQuery(src, dst Copy, mask FieldMask) (string, []interface{}, error) {
	if mask == 0 {
		return "", nil, dsserr.Kindf(dsserr.InvalidData, "update requires at least one field bit")
	}
	var sets []string
	var args []interface{}
	if mask.Has(CopyStatusBit) {
		args = append(args, dst.CopyStatus)
		sets = append(sets, fmt.Sprintf("copy_status = $%d", len(args)))
	}
	if mask.Has(CopyAccessTimeBit) {
		args = append(args, dst.AccessTime)
		sets = append(sets, fmt.Sprintf("access_time = $%d", len(args)))
	}
	if mask.Has(CopyLayoutInfoBit) {
		args = append(args, dst.LayoutInfo)
		sets = append(sets, fmt.Sprintf("layout_info = $%d", len(args)))
	}
	if len(sets) == 0 {
		return "", nil, dsserr.Kindf(dsserr.InvalidData, "update mask selected no recognized bit")
	}
	args = append(args, src.ObjectUUID, src.Version, src.CopyName)
	stmt := fmt.Sprintf("UPDATE %s SET %s WHERE object_uuid = $%d AND version = $%d AND copy_name = $%d",
		copyTable, strings.Join(sets, ", "), len(args)-2, len(args)-1, len(args))
	return stmt, args, nil
}

func (CopyCodec) SelectQuery(pred1, pred2 string, sort *Sort) (string, []interface{}, error) {
	if pred2 != "" {
		return "", nil, dsserr.Kindf(dsserr.NotSupported, "copy select takes at most one predicate fragment")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", copyColumns, copyTable)
	if pred1 != "" {
		fmt.Fprintf(&b, " WHERE %s", pred1)
	}
	if sort != nil {
		fmt.Fprintf(&b, " ORDER BY %s %s", sortColumn(sort.Field), sortDirection(sort.Order))
	}
	return b.String(), nil, nil
}

func (CopyCodec) DeleteQuery(items []Copy) (string, []interface{}, error) {
	if len(items) == 0 {
		return "", nil, dsserr.Kindf(dsserr.InvalidData, "delete requires at least one copy")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "DELETE FROM %s WHERE (object_uuid, version, copy_name) IN (", copyTable)
	args := make([]interface{}, 0, len(items)*3)
	for i, c := range items {
		if i > 0 {
			b.WriteString(", ")
		}
		n := len(args)
		fmt.Fprintf(&b, "($%d, $%d, $%d)", n+1, n+2, n+3)
		args = append(args, c.ObjectUUID, c.Version, c.CopyName)
	}
	b.WriteString(")")
	return b.String(), args, nil
}

func (CopyCodec) FromRow(rows *sql.Rows) (Copy, error) {
	var c Copy
	err := rows.Scan(&c.ObjectUUID, &c.Version, &c.CopyName, &c.CopyStatus, &c.CreationTime, &c.AccessTime, &c.LayoutInfo)
	if err != nil {
		return Copy{}, dsserr.Wrap(dsserr.InvalidData, err, "decode copy row")
	}
	return c, nil
}
