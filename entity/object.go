package entity

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/cea-hpc/phobos-sub000/dsserr"
)

// Object bits for the update-query contract (spec §4.C). Rename is the
// only supported mutation on an alive object; other fields are set only
// at insert time.
const (
	ObjectOID FieldMask = 1 << iota
)

// ObjectCodec implements the entity codec contract for the alive object
// table (spec §4.C).
type ObjectCodec struct{}

const objectTable = "object"
const objectColumns = "oid, object_uuid, version, user_md, grouping_label, size, creation_time"

// Size returns the number of Go-side bytes an Object occupies, matching
// the codec contract's "size" operation (spec §4.C); it lets callers
// preallocate a result block sized to the decoded-row buffer.
func (ObjectCodec) Size() int { return int(unsafeSizeofObject) }

// InsertQuery builds a multi-row INSERT for items.
func (ObjectCodec) InsertQuery(items []Object) (string, []interface{}, error) {
	if len(items) == 0 {
		return "", nil, dsserr.Kindf(dsserr.InvalidData, "insert requires at least one object")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", objectTable, objectColumns)
	args := make([]interface{}, 0, len(items)*7)
	for i, o := range items {
		if i > 0 {
			b.WriteString(", ")
		}
		n := len(args)
		fmt.Fprintf(&b, "($%d, $%d, $%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5, n+6, n+7)
		args = append(args, o.OID, o.UUID, o.Version, o.UserMetadata, o.Grouping, o.Size, o.CreationTime)
	}
	return b.String(), args, nil
}

// UpdateQuery builds the rename statement: the only update ObjectCodec
// supports is changing oid, selected by the ObjectOID bit.
func (ObjectCodec) UpdateQuery(src, dst Object, mask FieldMask) (string, []interface{}, error) {
	if mask == 0 {
		return "", nil, dsserr.Kindf(dsserr.InvalidData, "update requires at least one field bit")
	}
	if mask != ObjectOID {
		return "", nil, dsserr.Kindf(dsserr.NotSupported, "object update only supports renaming oid")
	}
	stmt := fmt.Sprintf("UPDATE %s SET oid = $1 WHERE oid = $2", objectTable)
	return stmt, []interface{}{dst.OID, src.OID}, nil
}

// SelectQuery builds a SELECT over the alive table. pred2 is rejected:
// Object is a single-table codec (spec §4.C select contract).
func (ObjectCodec) SelectQuery(pred1, pred2 string, sort *Sort) (string, []interface{}, error) {
	if pred2 != "" {
		return "", nil, dsserr.Kindf(dsserr.NotSupported, "object select takes at most one predicate fragment")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", objectColumns, objectTable)
	if pred1 != "" {
		fmt.Fprintf(&b, " WHERE %s", pred1)
	}
	if sort != nil {
		fmt.Fprintf(&b, " ORDER BY %s %s", sortColumn(sort.Field), sortDirection(sort.Order))
	}
	return b.String(), nil, nil
}

// DeleteQuery builds a DELETE matching items by their natural key (oid).
func (ObjectCodec) DeleteQuery(items []Object) (string, []interface{}, error) {
	if len(items) == 0 {
		return "", nil, dsserr.Kindf(dsserr.InvalidData, "delete requires at least one object")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "DELETE FROM %s WHERE oid IN (", objectTable)
	args := make([]interface{}, 0, len(items))
	for i, o := range items {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "$%d", i+1)
		args = append(args, o.OID)
	}
	b.WriteString(")")
	return b.String(), args, nil
}

// FromRow decodes one row produced by SelectQuery's column list.
func (ObjectCodec) FromRow(rows *sql.Rows) (Object, error) {
	var o Object
	if err := rows.Scan(&o.OID, &o.UUID, &o.Version, &o.UserMetadata, &o.Grouping, &o.Size, &o.CreationTime); err != nil {
		return Object{}, dsserr.Wrap(dsserr.InvalidData, err, "decode object row")
	}
	return o, nil
}

// DeprecatedObject bits (spec §4.C: "only changes oid").
const (
	DeprecatedObjectOID FieldMask = 1 << iota
)

// DeprecatedObjectCodec implements the entity codec contract for the
// deprecated object table.
type DeprecatedObjectCodec struct{}

const deprecatedTable = "deprecated_object"
const deprecatedColumns = "oid, object_uuid, version, user_md, grouping_label, size, creation_time, deprec_time"

func (DeprecatedObjectCodec) Size() int { return int(unsafeSizeofObject) + 8 }

func (DeprecatedObjectCodec) InsertQuery(items []DeprecatedObject) (string, []interface{}, error) {
	if len(items) == 0 {
		return "", nil, dsserr.Kindf(dsserr.InvalidData, "insert requires at least one deprecated object")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", deprecatedTable, deprecatedColumns)
	args := make([]interface{}, 0, len(items)*8)
	for i, o := range items {
		if i > 0 {
			b.WriteString(", ")
		}
		n := len(args)
		fmt.Fprintf(&b, "($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5, n+6, n+7, n+8)
		args = append(args, o.OID, o.UUID, o.Version, o.UserMetadata, o.Grouping, o.Size, o.CreationTime, o.DeprecTime)
	}
	return b.String(), args, nil
}

// UpdateQuery supports only an oid rewrite, keyed by (uuid, version); all
// other fields are immutable once deprecated (spec §4.C).
func (DeprecatedObjectCodec) UpdateQuery(src, dst DeprecatedObject, mask FieldMask) (string, []interface{}, error) {
	if mask == 0 {
		return "", nil, dsserr.Kindf(dsserr.InvalidData, "update requires at least one field bit")
	}
	if mask != DeprecatedObjectOID {
		return "", nil, dsserr.Kindf(dsserr.NotSupported, "deprecated object update only supports renaming oid")
	}
	stmt := fmt.Sprintf("UPDATE %s SET oid = $1 WHERE object_uuid = $2 AND version = $3", deprecatedTable)
	return stmt, []interface{}{dst.OID, src.UUID, src.Version}, nil
}

func (DeprecatedObjectCodec) SelectQuery(pred1, pred2 string, sort *Sort) (string, []interface{}, error) {
	if pred2 != "" {
		return "", nil, dsserr.Kindf(dsserr.NotSupported, "deprecated object select takes at most one predicate fragment")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", deprecatedColumns, deprecatedTable)
	if pred1 != "" {
		fmt.Fprintf(&b, " WHERE %s", pred1)
	}
	if sort != nil {
		fmt.Fprintf(&b, " ORDER BY %s %s", sortColumn(sort.Field), sortDirection(sort.Order))
	}
	return b.String(), nil, nil
}

func (DeprecatedObjectCodec) DeleteQuery(items []DeprecatedObject) (string, []interface{}, error) {
	if len(items) == 0 {
		return "", nil, dsserr.Kindf(dsserr.InvalidData, "delete requires at least one deprecated object")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "DELETE FROM %s WHERE (object_uuid, version) IN (", deprecatedTable)
	args := make([]interface{}, 0, len(items)*2)
	for i, o := range items {
		if i > 0 {
			b.WriteString(", ")
		}
		n := len(args)
		fmt.Fprintf(&b, "($%d, $%d)", n+1, n+2)
		args = append(args, o.UUID, o.Version)
	}
	b.WriteString(")")
	return b.String(), args, nil
}

func (DeprecatedObjectCodec) FromRow(rows *sql.Rows) (DeprecatedObject, error) {
	var o DeprecatedObject
	err := rows.Scan(&o.OID, &o.UUID, &o.Version, &o.UserMetadata, &o.Grouping, &o.Size, &o.CreationTime, &o.DeprecTime)
	if err != nil {
		return DeprecatedObject{}, dsserr.Wrap(dsserr.InvalidData, err, "decode deprecated object row")
	}
	return o, nil
}

// unsafeSizeofObject approximates an Object's decoded footprint for the
// codec's Size() contract without importing unsafe: it is a fixed
// estimate of the struct's non-slice fields, good enough for the
// preallocation hint consumers use it for (spec §4.D get()).
const unsafeSizeofObject = 64

func sortColumn(field string) string {
	// Field names passed in a Sort already name backend columns for every
	// codec except Layout, which sorts in memory (spec §4.C); grounding
	// the mapping here keeps every other codec's SelectQuery identical.
	return field
}

func sortDirection(o SortOrder) string {
	if o == Descending {
		return "DESC"
	}
	return "ASC"
}
