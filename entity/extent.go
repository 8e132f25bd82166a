package entity

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/cea-hpc/phobos-sub000/dsserr"
)

// Extent update bits (spec §4.C names state transitions and hash
// attachment as the mutable fields once an extent has been written).
const (
	ExtentStateBit FieldMask = 1 << iota
	ExtentHashBit
)

// ExtentCodec implements the entity codec contract for the extent table.
type ExtentCodec struct{}

const extentTable = "extent"
const extentColumns = "extent_uuid, size, offset, state, medium_family, medium_name, medium_library, address, hash, info, creation_time"

func (ExtentCodec) Size() int { return 96 }

func (ExtentCodec) InsertQuery(items []Extent) (string, []interface{}, error) {
	if len(items) == 0 {
		return "", nil, dsserr.Kindf(dsserr.InvalidData, "insert requires at least one extent")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", extentTable, extentColumns)
	args := make([]interface{}, 0, len(items)*11)
	for i, e := range items {
		if i > 0 {
			b.WriteString(", ")
		}
		hashJSON, err := EncodeHash(e.Hash)
		if err != nil {
			return "", nil, err
		}
		n := len(args)
		fmt.Fprintf(&b, "($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			n+1, n+2, n+3, n+4, n+5, n+6, n+7, n+8, n+9, n+10, n+11)
		args = append(args, e.UUID, e.Size, e.Offset, e.State,
			e.Medium.Family, e.Medium.Name, e.Medium.Library, e.Address, hashJSON, e.Info, e.CreationTime)
	}
	return b.String(), args, nil
}

func (ExtentCodec) UpdateQuery(src, dst Extent, mask FieldMask) (string, []interface{}, error) {
	if mask == 0 {
		return "", nil, dsserr.Kindf(dsserr.InvalidData, "update requires at least one field bit")
	}
	var sets []string
	var args []interface{}
	if mask.Has(ExtentStateBit) {
		args = append(args, dst.State)
		sets = append(sets, fmt.Sprintf("state = $%d", len(args)))
	}
	if mask.Has(ExtentHashBit) {
		hashJSON, err := EncodeHash(dst.Hash)
		if err != nil {
			return "", nil, err
		}
		args = append(args, hashJSON)
		sets = append(sets, fmt.Sprintf("hash = $%d", len(args)))
	}
	if len(sets) == 0 {
		return "", nil, dsserr.Kindf(dsserr.InvalidData, "update mask selected no recognized bit")
	}
	args = append(args, src.UUID)
	stmt := fmt.Sprintf("UPDATE %s SET %s WHERE extent_uuid = $%d", extentTable, strings.Join(sets, ", "), len(args))
	return stmt, args, nil
}

func (ExtentCodec) SelectQuery(pred1, pred2 string, sort *Sort) (string, []interface{}, error) {
	if pred2 != "" {
		return "", nil, dsserr.Kindf(dsserr.NotSupported, "extent select takes at most one predicate fragment")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", extentColumns, extentTable)
	if pred1 != "" {
		fmt.Fprintf(&b, " WHERE %s", pred1)
	}
	if sort != nil {
		fmt.Fprintf(&b, " ORDER BY %s %s", sortColumn(sort.Field), sortDirection(sort.Order))
	}
	return b.String(), nil, nil
}

func (ExtentCodec) DeleteQuery(items []Extent) (string, []interface{}, error) {
	if len(items) == 0 {
		return "", nil, dsserr.Kindf(dsserr.InvalidData, "delete requires at least one extent")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "DELETE FROM %s WHERE extent_uuid IN (", extentTable)
	args := make([]interface{}, 0, len(items))
	for i, e := range items {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "$%d", i+1)
		args = append(args, e.UUID)
	}
	b.WriteString(")")
	return b.String(), args, nil
}

func (ExtentCodec) FromRow(rows *sql.Rows) (Extent, error) {
	var e Extent
	var hashRaw []byte
	err := rows.Scan(&e.UUID, &e.Size, &e.Offset, &e.State,
		&e.Medium.Family, &e.Medium.Name, &e.Medium.Library, &e.Address, &hashRaw, &e.Info, &e.CreationTime)
	if err != nil {
		return Extent{}, dsserr.Wrap(dsserr.InvalidData, err, "decode extent row")
	}
	h, err := DecodeHash(hashRaw)
	if err != nil {
		return Extent{}, err
	}
	e.Hash = h
	return e, nil
}
