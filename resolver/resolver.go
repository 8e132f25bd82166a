// Package resolver implements the object resolver (spec §4.G): locating
// an object by (oid?, uuid?, version?) across the alive and deprecated
// tables, with the tie-breaking and ambiguity rules spec.md specifies
// for a match that only the deprecated table can satisfy.
package resolver

import (
	"context"
	"fmt"

	"github.com/cea-hpc/phobos-sub000/dsserr"
	"github.com/cea-hpc/phobos-sub000/entity"
	"github.com/cea-hpc/phobos-sub000/store"
)

// Scope restricts which tables Resolve searches.
type Scope int

const (
	// Alive searches only the alive table.
	Alive Scope = iota
	// Deprecated searches only the deprecated table.
	Deprecated
	// All searches both, alive first (spec §4.G step 1-2), falling back
	// to deprecated with tie-breaking (step 3).
	All
)

// Query is the resolver's input: at least one of OID/UUID must be set
// (spec §4.G).
type Query struct {
	OID     string
	UUID    string
	Version int // 0 means unspecified
}

func (q Query) validate() error {
	if q.OID == "" && q.UUID == "" {
		return dsserr.Kindf(dsserr.InvalidData, "resolve requires oid or uuid")
	}
	return nil
}

// Resolve finds the object matching q under scope (spec §4.G).
func Resolve(ctx context.Context, h *store.Handle, q Query, scope Scope) (entity.Object, error) {
	if err := q.validate(); err != nil {
		return entity.Object{}, err
	}

	if scope == Alive || scope == All {
		obj, found, err := resolveAlive(ctx, h, q)
		if err != nil {
			return entity.Object{}, err
		}
		if found {
			return obj, nil
		}
		if scope == Alive {
			return entity.Object{}, dsserr.Kindf(dsserr.NotFound, "no alive object matches")
		}
	}

	return resolveDeprecated(ctx, h, q)
}

func resolveAlive(ctx context.Context, h *store.Handle, q Query) (entity.Object, bool, error) {
	pred := buildPredicate(q)
	stmt, args, err := entity.ObjectCodec{}.SelectQuery(pred, "", nil)
	if err != nil {
		return entity.Object{}, false, err
	}
	rows, err := h.Query(ctx, stmt, args...)
	if err != nil {
		return entity.Object{}, false, err
	}
	defer rows.Close()

	if !rows.Next() {
		return entity.Object{}, false, nil
	}
	obj, err := entity.ObjectCodec{}.FromRow(rows)
	if err != nil {
		return entity.Object{}, false, err
	}
	// The alive table is unique by oid (spec §3), so a match here is the
	// only one; the resolver does not need to drain further rows.
	return obj, true, nil
}

// resolveDeprecated implements spec §4.G step 3's tie-breaking: if uuid
// is unspecified and multiple uuids are present among the matches, fail
// Ambiguous; otherwise pick the exact version if specified, or the
// greatest version if not.
func resolveDeprecated(ctx context.Context, h *store.Handle, q Query) (entity.Object, error) {
	pred := buildPredicate(q)
	stmt, args, err := entity.DeprecatedObjectCodec{}.SelectQuery(pred, "", nil)
	if err != nil {
		return entity.Object{}, err
	}
	rows, err := h.Query(ctx, stmt, args...)
	if err != nil {
		return entity.Object{}, err
	}
	defer rows.Close()

	var matches []entity.DeprecatedObject
	for rows.Next() {
		d, err := entity.DeprecatedObjectCodec{}.FromRow(rows)
		if err != nil {
			return entity.Object{}, err
		}
		matches = append(matches, d)
	}
	if err := rows.Err(); err != nil {
		return entity.Object{}, store.ClassifyError(err, "scan deprecated object matches")
	}
	if len(matches) == 0 {
		return entity.Object{}, dsserr.Kindf(dsserr.NotFound, "no deprecated object matches")
	}

	if q.UUID == "" {
		firstUUID := matches[0].UUID
		for _, m := range matches[1:] {
			if m.UUID != firstUUID {
				return entity.Object{}, dsserr.Kindf(dsserr.Ambiguous, "multiple uuids match, specify uuid to disambiguate")
			}
		}
	}

	if q.Version != 0 {
		for _, m := range matches {
			if m.Version == q.Version {
				return toObject(m), nil
			}
		}
		return entity.Object{}, dsserr.Kindf(dsserr.NotFound, "no deprecated object matches version %d", q.Version)
	}

	best := matches[0]
	for _, m := range matches[1:] {
		if m.Version > best.Version {
			best = m
		}
	}
	return toObject(best), nil
}

func toObject(d entity.DeprecatedObject) entity.Object {
	return entity.Object{
		OID:          d.OID,
		UUID:         d.UUID,
		Version:      d.Version,
		UserMetadata: d.UserMetadata,
		Grouping:     d.Grouping,
		Size:         d.Size,
		CreationTime: d.CreationTime,
	}
}

func buildPredicate(q Query) string {
	var parts []string
	if q.OID != "" {
		parts = append(parts, fmt.Sprintf("oid = %s", store.EscapeLiteral(q.OID)))
	}
	if q.UUID != "" {
		parts = append(parts, fmt.Sprintf("object_uuid = %s", store.EscapeLiteral(q.UUID)))
	}
	if q.Version != 0 {
		parts = append(parts, fmt.Sprintf("version = %d", q.Version))
	}
	pred := ""
	for i, p := range parts {
		if i > 0 {
			pred += " AND "
		}
		pred += p
	}
	return pred
}
