// Package dss is the root facade (spec §2's control flow): it opens a
// Handle by composing store.Open with the schema gate (H) and the
// supported-model registry (I), then exposes one method per entity
// operation, each asking the entity codec (C) for query fragments,
// submitting them through the CRUD facade (D) or a direct Store call, and
// decoding rows back into domain values. Lock (E), health (F) and resolver
// (G) operations are independent entry points against the same Handle,
// matching spec §2's "independent entry points using the same Store."
package dss

import (
	"context"
	"time"

	"github.com/cea-hpc/phobos-sub000/config"
	"github.com/cea-hpc/phobos-sub000/crud"
	"github.com/cea-hpc/phobos-sub000/dsserr"
	"github.com/cea-hpc/phobos-sub000/entity"
	"github.com/cea-hpc/phobos-sub000/filter"
	"github.com/cea-hpc/phobos-sub000/health"
	"github.com/cea-hpc/phobos-sub000/lock"
	"github.com/cea-hpc/phobos-sub000/model"
	"github.com/cea-hpc/phobos-sub000/resolver"
	"github.com/cea-hpc/phobos-sub000/schema"
	"github.com/cea-hpc/phobos-sub000/store"
)

// Handle is the client-facing entry point: a Store connection that has
// already passed the schema gate, paired with the supported-model
// registry built from configuration.
type Handle struct {
	store  *store.Handle
	models *model.Registry
}

// Open connects to the backend, runs the schema gate once (spec §4.H),
// and builds the supported-model registry from cfg (spec §4.I). Either
// failure aborts before a Handle is returned, matching spec §2: "the
// schema gate runs once at Handle open."
func Open(ctx context.Context, cfg *config.Config, opts ...store.Option) (*Handle, error) {
	s, err := store.Open(ctx, cfg.ConnectString, opts...)
	if err != nil {
		return nil, err
	}
	h, err := OpenHandle(ctx, s, cfg)
	if err != nil {
		s.Close()
		return nil, err
	}
	return h, nil
}

// OpenHandle runs the schema gate and builds the supported-model registry
// against an already-open *store.Handle. Open is the normal entry point
// for a Postgres connection string; this split (mirroring store.Open vs.
// store.NewHandle) exists so the gate/registry composition can be
// exercised against a fake driver in tests without a live backend.
func OpenHandle(ctx context.Context, s *store.Handle, cfg *config.Config) (*Handle, error) {
	if err := schema.Check(ctx, s); err != nil {
		return nil, err
	}
	models := model.NewRegistry(joinModels(cfg.SupportedTapeModels))
	return &Handle{store: s, models: models}, nil
}

func joinModels(models []string) string {
	out := ""
	for i, m := range models {
		if i > 0 {
			out += ","
		}
		out += m
	}
	return out
}

// Close releases the underlying Store connection.
func (h *Handle) Close() error { return h.store.Close() }

// Store exposes the underlying *store.Handle for callers
// that need to reach lock/health/resolver operations, which take a
// *store.Handle directly rather than a *dss.Handle.
func (h *Handle) Store() *store.Handle { return h.store }

// Models returns the supported-model registry this Handle was opened
// with.
func (h *Handle) Models() *model.Registry { return h.models }

func compilePredicate(tree map[string]interface{}, fields filter.FieldMap) (string, error) {
	if tree == nil {
		return "", nil
	}
	return filter.Compile(tree, fields, filter.Postgres)
}

// --- Object ---

func (h *Handle) GetObjects(ctx context.Context, tree map[string]interface{}, sort *entity.Sort) ([]entity.Object, error) {
	pred, err := compilePredicate(tree, filter.ObjectFields)
	if err != nil {
		return nil, err
	}
	return crud.Get[entity.Object](ctx, h.store, entity.ObjectCodec{}, pred, "", sort)
}

func (h *Handle) InsertObjects(ctx context.Context, items []entity.Object) error {
	for i := range items {
		if items[i].UUID == "" {
			items[i].UUID = entity.NewUUID()
		}
	}
	return crud.Insert[entity.Object](ctx, h.store, entity.ObjectCodec{}, items)
}

func (h *Handle) DeleteObjects(ctx context.Context, items []entity.Object) error {
	return crud.Delete[entity.Object](ctx, h.store, entity.ObjectCodec{}, items)
}

// RenameObject renames oldOID to newOID across the alive and deprecated
// tables under a lock-guarded transaction (spec §4.C/§4.E).
func (h *Handle) RenameObject(ctx context.Context, hostname string, owner int64, oldOID, newOID string) error {
	return crud.RenameObject(ctx, h.store, hostname, owner, oldOID, newOID)
}

// MoveObjectToDeprecated atomically moves obj from the alive table to the
// deprecated table, stamping deprecTime (spec §3's alive→deprecated
// transition).
func (h *Handle) MoveObjectToDeprecated(ctx context.Context, obj entity.Object, deprecTime time.Time) error {
	return crud.MoveToDeprecated(ctx, h.store, obj, deprecTime)
}

// MoveObjectFromDeprecated atomically moves dep from the deprecated table
// back to the alive table (spec §3's deprecated→alive transition).
func (h *Handle) MoveObjectFromDeprecated(ctx context.Context, dep entity.DeprecatedObject) error {
	return crud.MoveFromDeprecated(ctx, h.store, dep)
}

// --- Deprecated object ---

func (h *Handle) GetDeprecatedObjects(ctx context.Context, tree map[string]interface{}, sort *entity.Sort) ([]entity.DeprecatedObject, error) {
	pred, err := compilePredicate(tree, filter.ObjectFields)
	if err != nil {
		return nil, err
	}
	return crud.Get[entity.DeprecatedObject](ctx, h.store, entity.DeprecatedObjectCodec{}, pred, "", sort)
}

func (h *Handle) InsertDeprecatedObjects(ctx context.Context, items []entity.DeprecatedObject) error {
	return crud.Insert[entity.DeprecatedObject](ctx, h.store, entity.DeprecatedObjectCodec{}, items)
}

func (h *Handle) DeleteDeprecatedObjects(ctx context.Context, items []entity.DeprecatedObject) error {
	return crud.Delete[entity.DeprecatedObject](ctx, h.store, entity.DeprecatedObjectCodec{}, items)
}

// --- Copy ---

func (h *Handle) GetCopies(ctx context.Context, tree map[string]interface{}, sort *entity.Sort) ([]entity.Copy, error) {
	pred, err := compilePredicate(tree, filter.CopyFields)
	if err != nil {
		return nil, err
	}
	return crud.Get[entity.Copy](ctx, h.store, entity.CopyCodec{}, pred, "", sort)
}

func (h *Handle) InsertCopies(ctx context.Context, items []entity.Copy) error {
	return crud.Insert[entity.Copy](ctx, h.store, entity.CopyCodec{}, items)
}

func (h *Handle) UpdateCopies(ctx context.Context, src, dst []entity.Copy, mask entity.FieldMask) error {
	return crud.Update[entity.Copy](ctx, h.store, entity.CopyCodec{}, src, dst, mask)
}

func (h *Handle) DeleteCopies(ctx context.Context, items []entity.Copy) error {
	return crud.Delete[entity.Copy](ctx, h.store, entity.CopyCodec{}, items)
}

// --- Layout ---

// GetFullLayout returns one Layout per matching copy, extents aggregated
// and decoded in layout_index order (spec §4.C's json_agg select). When
// bySize is non-nil the results are additionally sorted by aggregate
// extent size in-memory, since size is not a backend column to ORDER BY
// (spec §4.C).
func (h *Handle) GetFullLayout(ctx context.Context, tree map[string]interface{}, bySize *entity.SortOrder) ([]entity.Layout, error) {
	pred, err := compilePredicate(tree, filter.CopyFields)
	if err != nil {
		return nil, err
	}
	stmt, args, err := entity.FullLayoutQuery(pred, "")
	if err != nil {
		return nil, err
	}
	rows, err := h.store.Query(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entity.Layout
	for rows.Next() {
		l, err := entity.DecodeFullLayoutRow(rows)
		if err != nil {
			return out, err
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return out, store.ClassifyError(err, "scan full layout rows")
	}
	if bySize != nil {
		entity.SortLayoutsBySize(out, *bySize)
	}
	return out, nil
}

func (h *Handle) InsertLayoutEntries(ctx context.Context, items []entity.LayoutEntry) error {
	return crud.Insert[entity.LayoutEntry](ctx, h.store, entity.LayoutEntryCodec{}, items)
}

func (h *Handle) DeleteLayoutEntries(ctx context.Context, items []entity.LayoutEntry) error {
	return crud.Delete[entity.LayoutEntry](ctx, h.store, entity.LayoutEntryCodec{}, items)
}

// --- Extent ---

func (h *Handle) GetExtents(ctx context.Context, tree map[string]interface{}, sort *entity.Sort) ([]entity.Extent, error) {
	pred, err := compilePredicate(tree, filter.ExtentFields)
	if err != nil {
		return nil, err
	}
	return crud.Get[entity.Extent](ctx, h.store, entity.ExtentCodec{}, pred, "", sort)
}

func (h *Handle) InsertExtents(ctx context.Context, items []entity.Extent) error {
	for i := range items {
		if items[i].UUID == "" {
			items[i].UUID = entity.NewUUID()
		}
	}
	return crud.Insert[entity.Extent](ctx, h.store, entity.ExtentCodec{}, items)
}

func (h *Handle) UpdateExtents(ctx context.Context, src, dst []entity.Extent, mask entity.FieldMask) error {
	return crud.Update[entity.Extent](ctx, h.store, entity.ExtentCodec{}, src, dst, mask)
}

func (h *Handle) DeleteExtents(ctx context.Context, items []entity.Extent) error {
	return crud.Delete[entity.Extent](ctx, h.store, entity.ExtentCodec{}, items)
}

// MigrateExtent repoints every layout reference from oldUUID to newUUID,
// marking oldUUID's extent orphan and newUUID's extent sync (spec §8
// update-extent-migrate).
func (h *Handle) MigrateExtent(ctx context.Context, oldUUID, newUUID string) error {
	return crud.MigrateExtent(ctx, h.store, oldUUID, newUUID)
}

// --- Medium ---

func (h *Handle) GetMedia(ctx context.Context, tree map[string]interface{}, sort *entity.Sort) ([]entity.Medium, error) {
	pred, err := compilePredicate(tree, filter.MediumFields)
	if err != nil {
		return nil, err
	}
	return crud.Get[entity.Medium](ctx, h.store, entity.MediumCodec{}, pred, "", sort)
}

// tapeFamily is the MediumRef.Family value subject to the supported-model
// check (spec §4.I, §8: "For all media M with family=tape: M.model ∈
// supported-model set").
const tapeFamily = "tape"

func (h *Handle) InsertMedia(ctx context.Context, items []entity.Medium) error {
	for _, m := range items {
		if m.ID.Family == tapeFamily && !h.models.Check(m.Model) {
			return dsserr.Kindf(dsserr.InvalidData, "unsupported tape model %q", m.Model)
		}
	}
	return crud.Insert[entity.Medium](ctx, h.store, entity.MediumCodec{}, items)
}

func (h *Handle) UpdateMedia(ctx context.Context, src, dst []entity.Medium, mask entity.FieldMask) error {
	return crud.Update[entity.Medium](ctx, h.store, entity.MediumCodec{}, src, dst, mask)
}

func (h *Handle) DeleteMedia(ctx context.Context, items []entity.Medium) error {
	return crud.Delete[entity.Medium](ctx, h.store, entity.MediumCodec{}, items)
}

// UpdateMediumStats merges upd into ref's current stats under the
// medium-update lock (spec §4.C special case).
func (h *Handle) UpdateMediumStats(ctx context.Context, hostname string, owner int64, ref entity.MediumRef, upd entity.StatsUpdate) error {
	return crud.UpdateMediumStats(ctx, h.store, hostname, owner, ref, upd)
}

// --- Device ---

func (h *Handle) GetDevices(ctx context.Context, tree map[string]interface{}, sort *entity.Sort) ([]entity.Device, error) {
	pred, err := compilePredicate(tree, filter.DeviceFields)
	if err != nil {
		return nil, err
	}
	return crud.Get[entity.Device](ctx, h.store, entity.DeviceCodec{}, pred, "", sort)
}

func (h *Handle) InsertDevices(ctx context.Context, items []entity.Device) error {
	return crud.Insert[entity.Device](ctx, h.store, entity.DeviceCodec{}, items)
}

func (h *Handle) UpdateDevices(ctx context.Context, src, dst []entity.Device, mask entity.FieldMask) error {
	return crud.Update[entity.Device](ctx, h.store, entity.DeviceCodec{}, src, dst, mask)
}

func (h *Handle) DeleteDevices(ctx context.Context, items []entity.Device) error {
	return crud.Delete[entity.Device](ctx, h.store, entity.DeviceCodec{}, items)
}

// --- Log / health ---

func (h *Handle) GetLogs(ctx context.Context, tree map[string]interface{}, sort *entity.Sort) ([]entity.LogRecord, error) {
	pred, err := compilePredicate(tree, filter.LogFields)
	if err != nil {
		return nil, err
	}
	return crud.Get[entity.LogRecord](ctx, h.store, entity.LogCodec{}, pred, "", sort)
}

// EmitLog appends one log record via the skeleton pattern (spec §4.F).
func (h *Handle) EmitLog(ctx context.Context, action entity.LogCause, rc int, skeleton health.Skeleton) error {
	return health.Emit(ctx, h.store, action, rc, skeleton)
}

// Health computes the bounded health counter for a device or medium
// (spec §4.F).
func (h *Handle) Health(ctx context.Context, kind health.ResourceKind, id entity.MediumRef, maxHealth int) (int, error) {
	return health.Health(ctx, h.store, kind, id, maxHealth)
}

// --- Lock ---

func (h *Handle) Lock(ctx context.Context, typ lock.Type, items []lock.Item, hostname string, owner int64) error {
	return lock.Lock(ctx, h.store, typ, items, hostname, owner)
}

func (h *Handle) LockWeak(ctx context.Context, typ lock.Type, items []lock.Item, hostname string) error {
	return lock.LockWeak(ctx, h.store, typ, items, hostname)
}

func (h *Handle) RefreshLock(ctx context.Context, typ lock.Type, items []lock.Item, hostname string, owner int64, locate bool) error {
	return lock.Refresh(ctx, h.store, typ, items, hostname, owner, locate)
}

func (h *Handle) RefreshLockTakeOwnership(ctx context.Context, typ lock.Type, items []lock.Item, hostname string, owner int64) error {
	return lock.RefreshTakeOwnership(ctx, h.store, typ, items, hostname, owner)
}

func (h *Handle) Unlock(ctx context.Context, typ lock.Type, items []lock.Item, hostname string, owner int64, force bool) error {
	return lock.Unlock(ctx, h.store, typ, items, hostname, owner, force)
}

func (h *Handle) LockStatus(ctx context.Context, typ lock.Type, items []lock.Item) ([]lock.Info, error) {
	return lock.Status(ctx, h.store, typ, items)
}

func (h *Handle) CleanDeviceLocks(ctx context.Context, family, hostname string, owner int64) error {
	return lock.CleanDeviceLocks(ctx, h.store, family, hostname, owner)
}

func (h *Handle) CleanMediaLocks(ctx context.Context, hostname string, owner int64, activeMediaIDs []string) error {
	return lock.CleanMediaLocks(ctx, h.store, hostname, owner, activeMediaIDs)
}

func (h *Handle) PurgeAllLocks(ctx context.Context) error {
	return lock.PurgeAll(ctx, h.store)
}

// --- Resolver ---

// ResolveObject locates an object by (oid?, uuid?, version?) across the
// alive and deprecated tables (spec §4.G).
func (h *Handle) ResolveObject(ctx context.Context, q resolver.Query, scope resolver.Scope) (entity.Object, error) {
	return resolver.Resolve(ctx, h.store, q, scope)
}
