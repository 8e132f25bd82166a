package entity

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/cea-hpc/phobos-sub000/dsserr"
)

// LogCodec implements the entity codec contract for the append-only log
// table (spec §3, §4.F). Log records are never updated once written.
type LogCodec struct{}

const logTable = "log"
const logColumns = "device_family, device_name, device_library, medium_family, medium_name, medium_library, errno, cause, message, time"

func (LogCodec) Size() int { return 112 }

func (LogCodec) InsertQuery(items []LogRecord) (string, []interface{}, error) {
	if len(items) == 0 {
		return "", nil, dsserr.Kindf(dsserr.InvalidData, "insert requires at least one log record")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", logTable, logColumns)
	args := make([]interface{}, 0, len(items)*10)
	for i, l := range items {
		if i > 0 {
			b.WriteString(", ")
		}
		n := len(args)
		ph := make([]string, 10)
		for k := range ph {
			ph[k] = fmt.Sprintf("$%d", n+k+1)
		}
		fmt.Fprintf(&b, "(%s)", strings.Join(ph, ", "))
		args = append(args,
			l.DeviceID.Family, l.DeviceID.Name, l.DeviceID.Library,
			l.MediumID.Family, l.MediumID.Name, l.MediumID.Library,
			l.Errno, l.Cause, l.Message, l.Time,
		)
	}
	return b.String(), args, nil
}

func (LogCodec) UpdateQuery(src, dst LogRecord, mask FieldMask) (string, []interface{}, error) {
	return "", nil, dsserr.Kindf(dsserr.NotSupported, "log records are append-only")
}

func (LogCodec) SelectQuery(pred1, pred2 string, sort *Sort) (string, []interface{}, error) {
	if pred2 != "" {
		return "", nil, dsserr.Kindf(dsserr.NotSupported, "log select takes at most one predicate fragment")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", logColumns, logTable)
	if pred1 != "" {
		fmt.Fprintf(&b, " WHERE %s", pred1)
	}
	if sort != nil {
		fmt.Fprintf(&b, " ORDER BY %s %s", sortColumn(sort.Field), sortDirection(sort.Order))
	} else {
		b.WriteString(" ORDER BY time ASC")
	}
	return b.String(), nil, nil
}

func (LogCodec) DeleteQuery(items []LogRecord) (string, []interface{}, error) {
	if len(items) == 0 {
		return "", nil, dsserr.Kindf(dsserr.InvalidData, "delete requires at least one log record")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "DELETE FROM %s WHERE (device_family, device_name, device_library, medium_family, medium_name, medium_library, time) IN (", logTable)
	args := make([]interface{}, 0, len(items)*7)
	for i, l := range items {
		if i > 0 {
			b.WriteString(", ")
		}
		n := len(args)
		fmt.Fprintf(&b, "($%d, $%d, $%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5, n+6, n+7)
		args = append(args, l.DeviceID.Family, l.DeviceID.Name, l.DeviceID.Library,
			l.MediumID.Family, l.MediumID.Name, l.MediumID.Library, l.Time)
	}
	b.WriteString(")")
	return b.String(), args, nil
}

func (LogCodec) FromRow(rows *sql.Rows) (LogRecord, error) {
	var l LogRecord
	err := rows.Scan(
		&l.DeviceID.Family, &l.DeviceID.Name, &l.DeviceID.Library,
		&l.MediumID.Family, &l.MediumID.Name, &l.MediumID.Library,
		&l.Errno, &l.Cause, &l.Message, &l.Time,
	)
	if err != nil {
		return LogRecord{}, dsserr.Wrap(dsserr.InvalidData, err, "decode log record row")
	}
	return l, nil
}
