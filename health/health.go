// Package health implements the health engine (spec §4.F): a bounded
// counter derived from the log stream for a device or medium, plus the
// post-action log-append routine that feeds that stream. The computed
// value is also exposed as a prometheus.GaugeVec for scraping.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cea-hpc/phobos-sub000/dsserr"
	"github.com/cea-hpc/phobos-sub000/entity"
	"github.com/cea-hpc/phobos-sub000/store"
)

// ResourceKind selects which log column family a health query scans.
type ResourceKind string

const (
	KindDevice ResourceKind = "device"
	KindMedium ResourceKind = "medium"
)

// Gauge exposes the last computed health value per (kind, family, name,
// library), scraped the way client_golang-instrumented services expose
// any other gauge.
var Gauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
	Name: "dss_resource_health",
	Help: "Computed health counter for a device or medium (spec §4.F).",
}, []string{"kind", "family", "name", "library"})

func init() {
	prometheus.MustRegister(Gauge)
}

// Health computes the bounded health counter for the named resource
// (spec §4.F algorithm): starting from maxHealth, skip the log prefix
// until the first errno != 0, then walk the remaining entries in
// chronological order, decrementing on error and incrementing on
// success, clamping into [0, maxHealth] after each step.
//
// The scan reads the log table directly through a Query (not inside a
// transaction), so no lock is held across it, matching the "must avoid
// holding locks across this scan" requirement.
func Health(ctx context.Context, h *store.Handle, kind ResourceKind, id entity.MediumRef, maxHealth int) (int, error) {
	if maxHealth < 0 {
		return 0, dsserr.Kindf(dsserr.InvalidData, "max_health must be nonnegative, got %d", maxHealth)
	}

	pred, err := resourcePredicate(kind, id)
	if err != nil {
		return 0, err
	}
	stmt, args, err := entity.LogCodec{}.SelectQuery(pred, "", &entity.Sort{Field: "time", Order: entity.Ascending})
	if err != nil {
		return 0, err
	}
	rows, err := h.Query(ctx, stmt, args...)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	health := maxHealth
	seenFirstError := false
	for rows.Next() {
		rec, err := entity.LogCodec{}.FromRow(rows)
		if err != nil {
			return 0, err
		}
		if !seenFirstError {
			if rec.Errno == 0 {
				continue
			}
			seenFirstError = true
		}
		if rec.Errno != 0 {
			health--
		} else {
			health++
		}
		if health < 0 {
			health = 0
		}
		if health > maxHealth {
			health = maxHealth
		}
	}
	if err := rows.Err(); err != nil {
		return 0, store.ClassifyError(err, "scan health log stream")
	}

	Gauge.WithLabelValues(string(kind), id.Family, id.Name, id.Library).Set(float64(health))
	return health, nil
}

func resourcePredicate(kind ResourceKind, id entity.MediumRef) (string, error) {
	switch kind {
	case KindDevice:
		return fmt.Sprintf("device_family = %s AND device_name = %s AND device_library = %s",
			store.EscapeLiteral(id.Family), store.EscapeLiteral(id.Name), store.EscapeLiteral(id.Library)), nil
	case KindMedium:
		return fmt.Sprintf("medium_family = %s AND medium_name = %s AND medium_library = %s",
			store.EscapeLiteral(id.Family), store.EscapeLiteral(id.Name), store.EscapeLiteral(id.Library)), nil
	default:
		return "", dsserr.Kindf(dsserr.InvalidData, "unknown resource kind %q", kind)
	}
}

// Skeleton is the template a caller supplies to Emit before knowing the
// action's outcome: ShouldLog decides whether Emit persists anything at
// all, Cause names the operation the skeleton was built for, and Message
// is the JSON payload to store absent any wrapping (spec §4.F).
type Skeleton struct {
	DeviceID  entity.MediumRef
	MediumID  entity.MediumRef
	Cause     entity.LogCause
	ShouldLog bool
	Message   []byte
}

// Emit persists one log record for action with result code rc, using
// skeleton as a template. It is a no-op when the skeleton says the
// action should not be logged. When rc != 0 and action differs from the
// skeleton's own cause, the message is wrapped under a key named after
// action, preserving which operation actually produced the failure
// (spec §4.F).
func Emit(ctx context.Context, h *store.Handle, action entity.LogCause, rc int, skeleton Skeleton) error {
	if !skeleton.ShouldLog {
		return nil
	}

	msg := skeleton.Message
	if rc != 0 && action != skeleton.Cause {
		wrapped := map[string]json.RawMessage{string(action): json.RawMessage(msg)}
		encoded, err := json.Marshal(wrapped)
		if err != nil {
			return dsserr.Wrap(dsserr.InvalidData, err, "wrap log message under action key")
		}
		msg = encoded
	}

	record := entity.LogRecord{
		DeviceID: skeleton.DeviceID,
		MediumID: skeleton.MediumID,
		Errno:    rc,
		Cause:    action,
		Message:  msg,
		Time:     time.Now().UTC(),
	}
	stmt, args, err := entity.LogCodec{}.InsertQuery([]entity.LogRecord{record})
	if err != nil {
		return err
	}
	_, err = h.Execute(ctx, store.AnyRows, stmt, args...)
	return err
}
