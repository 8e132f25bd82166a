package entity

import "time"

// AdminStatus is the administrative lock state of a Medium or Device
// (spec §3).
type AdminStatus string

const (
	AdminUnlocked AdminStatus = "unlocked"
	AdminLocked   AdminStatus = "locked"
	AdminFailed   AdminStatus = "failed"
)

// FSStatus is the filesystem state of a Medium.
type FSStatus string

const (
	FSBlank  FSStatus = "blank"
	FSEmpty  FSStatus = "empty"
	FSUsed   FSStatus = "used"
	FSFull   FSStatus = "full"
	FSImport FSStatus = "importing"
)

// ExtentState is the lifecycle state of an Extent (spec §3).
type ExtentState string

const (
	ExtentPending ExtentState = "pending"
	ExtentSync    ExtentState = "sync"
	ExtentOrphan  ExtentState = "orphan"
)

// CopyStatus is the lifecycle state of a Copy.
type CopyStatus string

const (
	CopyIncomplete CopyStatus = "incomplete"
	CopyComplete   CopyStatus = "complete"
	CopyReadOnly   CopyStatus = "readonly"
)

// LogCause enumerates the operations a Log record can report on
// (spec §3, §4.F).
type LogCause string

const (
	CauseDeviceLoad   LogCause = "device_load"
	CauseDeviceUnload LogCause = "device_unload"
	CauseMediumFormat LogCause = "medium_format"
	CauseObjectPut    LogCause = "object_put"
	CauseObjectGet    LogCause = "object_get"
	CauseObjectDelete LogCause = "object_delete"
	CauseCopyMigrate  LogCause = "copy_migrate"
)

// MediumRef is the composite natural key of a Medium or Device
// (family, name, library — spec §3).
type MediumRef struct {
	Family  string
	Name    string
	Library string
}

// Object is a logical user-visible artifact (spec §3, alive table).
type Object struct {
	OID          string
	UUID         string
	Version      int
	UserMetadata []byte // opaque JSON, stored as-is
	Grouping     string
	Size         int64
	CreationTime time.Time
}

// DeprecatedObject is an alive object superseded or deleted, keyed by
// (UUID, Version). It carries the same attributes as Object plus
// DeprecTime; after deprecation every field but OID is immutable
// (spec §4.C).
type DeprecatedObject struct {
	OID          string
	UUID         string
	Version      int
	UserMetadata []byte
	Grouping     string
	Size         int64
	CreationTime time.Time
	DeprecTime   time.Time
}

// Copy is a named replica of (object-uuid, version) (spec §3).
type Copy struct {
	ObjectUUID   string
	Version      int
	CopyName     string
	CopyStatus   CopyStatus
	CreationTime time.Time
	AccessTime   time.Time
	LayoutInfo   []byte // opaque JSON
}

// LayoutEntry maps one (copy, extent) pairing to its position in the
// copy's extent ordering (spec §3).
type LayoutEntry struct {
	ObjectUUID  string
	Version     int
	CopyName    string
	ExtentUUID  string
	LayoutIndex int
}

// Layout is the fully decoded extent list for one copy, aggregated and
// decoded by the full-layout select (spec §4.C).
type Layout struct {
	ObjectUUID string
	Version    int
	CopyName   string
	Extents    []Extent // ordered by LayoutIndex after decode
}

// Size returns the sum of the layout's extent sizes, the key the full
// layout select sorts on (spec §4.C).
func (l Layout) Size() int64 {
	var total int64
	for _, e := range l.Extents {
		total += e.Size
	}
	return total
}

// Hash carries an Extent's optional content digests (spec §3, §4.C).
// A nil (empty) slice means "not computed"; present digests are fixed-length
// byte slices (16 for MD5, 16 for the xxh128 proxy, see hash.go).
type Hash struct {
	MD5    []byte
	XXH128 []byte
}

// Extent is a physical byte range on a Medium (spec §3).
type Extent struct {
	UUID         string
	Size         int64
	Offset       int64
	State        ExtentState
	Medium       MediumRef
	Address      string
	Hash         Hash
	Info         []byte // opaque JSON
	CreationTime time.Time
}

// MediumStats holds the accounting fields of a Medium (spec §3).
type MediumStats struct {
	NumObjects    int64
	LogicalUsed   int64
	PhysicalUsed  int64
	PhysicalFree  int64
	NumLoad       int64
	NumErrors     int64
	LastLoad      time.Time
}

// Medium is a physical storage target (spec §3).
type Medium struct {
	ID         MediumRef
	Model      string
	AdminState AdminStatus
	FSType     string
	FSStatus   FSStatus
	FSLabel    string
	AddrType   string
	PutAccess  bool
	GetAccess  bool
	DelAccess  bool
	Stats      MediumStats
	Tags       []string
	Groupings  []string
}

// Device is a drive or mount point that can host media (spec §3).
type Device struct {
	ID         MediumRef
	Model      string
	Host       string
	Path       string
	AdminState AdminStatus
}

// LogRecord is an append-only operational event (spec §3).
type LogRecord struct {
	DeviceID MediumRef
	MediumID MediumRef
	Errno    int
	Cause    LogCause
	Message  []byte // opaque JSON
	Time     time.Time
}
