package entity

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/cea-hpc/phobos-sub000/dsserr"
)

// Device update bits (spec §4.C).
const (
	DeviceAdminStatusBit FieldMask = 1 << iota
	DeviceHostBit
	DevicePathBit
)

// DeviceCodec implements the entity codec contract for the device table.
type DeviceCodec struct{}

const deviceTable = "device"
const deviceColumns = "family, name, library, model, host, path, adm_status"

func (DeviceCodec) Size() int { return 80 }

func (DeviceCodec) InsertQuery(items []Device) (string, []interface{}, error) {
	if len(items) == 0 {
		return "", nil, dsserr.Kindf(dsserr.InvalidData, "insert requires at least one device")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", deviceTable, deviceColumns)
	args := make([]interface{}, 0, len(items)*7)
	for i, d := range items {
		if i > 0 {
			b.WriteString(", ")
		}
		n := len(args)
		fmt.Fprintf(&b, "($%d, $%d, $%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5, n+6, n+7)
		args = append(args, d.ID.Family, d.ID.Name, d.ID.Library, d.Model, d.Host, d.Path, d.AdminState)
	}
	return b.String(), args, nil
}

func (DeviceCodec) UpdateQuery(src, dst Device, mask FieldMask) (string, []interface{}, error) {
	if mask == 0 {
		return "", nil, dsserr.Kindf(dsserr.InvalidData, "update requires at least one field bit")
	}
	var sets []string
	var args []interface{}
	add := func(col string, v interface{}) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if mask.Has(DeviceAdminStatusBit) {
		add("adm_status", dst.AdminState)
	}
	if mask.Has(DeviceHostBit) {
		add("host", dst.Host)
	}
	if mask.Has(DevicePathBit) {
		add("path", dst.Path)
	}
	if len(sets) == 0 {
		return "", nil, dsserr.Kindf(dsserr.InvalidData, "update mask selected no recognized bit")
	}
	args = append(args, src.ID.Family, src.ID.Name, src.ID.Library)
	stmt := fmt.Sprintf("UPDATE %s SET %s WHERE family = $%d AND name = $%d AND library = $%d",
		deviceTable, strings.Join(sets, ", "), len(args)-2, len(args)-1, len(args))
	return stmt, args, nil
}

func (DeviceCodec) SelectQuery(pred1, pred2 string, sort *Sort) (string, []interface{}, error) {
	if pred2 != "" {
		return "", nil, dsserr.Kindf(dsserr.NotSupported, "device select takes at most one predicate fragment")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", deviceColumns, deviceTable)
	if pred1 != "" {
		fmt.Fprintf(&b, " WHERE %s", pred1)
	}
	if sort != nil {
		fmt.Fprintf(&b, " ORDER BY %s %s", sortColumn(sort.Field), sortDirection(sort.Order))
	}
	return b.String(), nil, nil
}

func (DeviceCodec) DeleteQuery(items []Device) (string, []interface{}, error) {
	if len(items) == 0 {
		return "", nil, dsserr.Kindf(dsserr.InvalidData, "delete requires at least one device")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "DELETE FROM %s WHERE (family, name, library) IN (", deviceTable)
	args := make([]interface{}, 0, len(items)*3)
	for i, d := range items {
		if i > 0 {
			b.WriteString(", ")
		}
		n := len(args)
		fmt.Fprintf(&b, "($%d, $%d, $%d)", n+1, n+2, n+3)
		args = append(args, d.ID.Family, d.ID.Name, d.ID.Library)
	}
	b.WriteString(")")
	return b.String(), args, nil
}

func (DeviceCodec) FromRow(rows *sql.Rows) (Device, error) {
	var d Device
	err := rows.Scan(&d.ID.Family, &d.ID.Name, &d.ID.Library, &d.Model, &d.Host, &d.Path, &d.AdminState)
	if err != nil {
		return Device{}, dsserr.Wrap(dsserr.InvalidData, err, "decode device row")
	}
	return d, nil
}
