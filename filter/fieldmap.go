package filter

import "github.com/cea-hpc/phobos-sub000/dsserr"

// FieldMap translates the public filter field namespace (spec §6.2, e.g.
// "DSS::OBJ::oid") into the backend column name the compiler should emit.
// The filter compiler consults it for every field reference; an entry
// missing from the map fails InvalidField.
type FieldMap map[string]string

// Resolve looks up public in the map.
func (m FieldMap) Resolve(public string) (string, error) {
	internal, ok := m[public]
	if !ok {
		return "", dsserr.Kindf(dsserr.InvalidField, "unknown filter field %q", public)
	}
	return internal, nil
}

// ObjectFields is the field namespace for DSS::OBJ (spec §6.2).
var ObjectFields = FieldMap{
	"DSS::OBJ::oid":     "oid",
	"DSS::OBJ::uuid":    "object_uuid",
	"DSS::OBJ::version": "version",
}

// CopyFields is the field namespace for DSS::COPY.
var CopyFields = FieldMap{
	"DSS::COPY::object_uuid": "object_uuid",
	"DSS::COPY::version":     "version",
	"DSS::COPY::copy_name":   "copy_name",
}

// LayoutFields is the field namespace for DSS::LYT.
var LayoutFields = FieldMap{
	"DSS::LYT::extent_uuid": "extent_uuid",
	"DSS::LYT::copy_name":   "copy_name",
}

// ExtentFields is the field namespace for DSS::EXT.
var ExtentFields = FieldMap{
	"DSS::EXT::medium_family":  "medium_family",
	"DSS::EXT::medium_id":      "medium_name",
	"DSS::EXT::medium_library": "medium_library",
	"DSS::EXT::state":          "state",
}

// MediumFields is the field namespace for DSS::MDA.
var MediumFields = FieldMap{
	"DSS::MDA::family":     "family",
	"DSS::MDA::id":         "name",
	"DSS::MDA::library":    "library",
	"DSS::MDA::adm_status": "adm_status",
}

// DeviceFields is the field namespace for DSS::DEV.
var DeviceFields = FieldMap{
	"DSS::DEV::host":       "host",
	"DSS::DEV::family":     "family",
	"DSS::DEV::adm_status": "adm_status",
	"DSS::DEV::id":         "name",
	"DSS::DEV::library":    "library",
}

// LogFields is the field namespace for DSS::LOG.
var LogFields = FieldMap{
	"DSS::LOG::family": "device_family",
	"DSS::LOG::device": "device_name",
	"DSS::LOG::medium": "medium_name",
	"DSS::LOG::errno":  "errno",
	"DSS::LOG::cause":  "cause",
	"DSS::LOG::start":  "time",
	"DSS::LOG::end":    "time",
}
