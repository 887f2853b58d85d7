package multiproc

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nicktill/procmet/pkg/metrics"
)

// StoreFileExt is the extension shared by every store file.
const StoreFileExt = ".db"

// DefaultLockFile is the coordination file name used when a config does not
// override it. The file is zero-length; only its flock state matters.
const DefaultLockFile = "compact.lock"

// archivedOwner is the owner segment of the shared per-class archive files.
const archivedOwner = "archived"

// StoreID is the identity a store filename encodes: metric type, gauge mode
// (gauges only), and owner (a pid, or the shared archive). It is parsed once
// at scan time and carried as structured data from then on.
type StoreID struct {
	Type     metrics.MetricType
	Mode     metrics.GaugeMode // set only when Type == GaugeType
	PID      int               // meaningful only when !Archived
	Archived bool
}

// ParseStoreFilename parses a store file basename of the form
// type_pid.db, type_mode_pid.db, type_archived.db or type_mode_archived.db.
// The mode segment is meaningful for gauges only; a gauge name that omits
// it, or carries an unrecognized token, falls back to the all mode like an
// unset mode does everywhere else. ok is false for anything else (the
// coordination file, editor droppings, and so on), which scanners silently
// skip.
func ParseStoreFilename(name string) (StoreID, bool) {
	if !strings.HasSuffix(name, StoreFileExt) {
		return StoreID{}, false
	}
	parts := strings.Split(strings.TrimSuffix(name, StoreFileExt), "_")

	typ, ok := metrics.ParseMetricType(parts[0])
	if !ok {
		return StoreID{}, false
	}

	id := StoreID{Type: typ}
	var owner string
	switch {
	case typ == metrics.GaugeType && len(parts) == 3:
		id.Mode = metrics.ParseGaugeMode(parts[1])
		owner = parts[2]
	case typ == metrics.GaugeType && len(parts) == 2:
		id.Mode = metrics.GaugeModeAll
		owner = parts[1]
	case typ != metrics.GaugeType && len(parts) == 2:
		owner = parts[1]
	default:
		return StoreID{}, false
	}

	if owner == archivedOwner {
		id.Archived = true
		return id, true
	}
	pid, err := strconv.Atoi(owner)
	if err != nil || pid <= 0 {
		return StoreID{}, false
	}
	id.PID = pid
	return id, true
}

// Filename rebuilds the canonical basename for the identity.
func (id StoreID) Filename() string {
	if id.Type == metrics.GaugeType {
		return fmt.Sprintf("%s_%s_%s%s", id.Type, id.Mode, id.owner(), StoreFileExt)
	}
	return fmt.Sprintf("%s_%s%s", id.Type, id.owner(), StoreFileExt)
}

// Archive returns the identity of the archive file this store compacts into.
func (id StoreID) Archive() StoreID {
	return StoreID{Type: id.Type, Mode: id.Mode, Archived: true}
}

// Live reports whether the file holds live-process-only gauge state. Live
// files are deleted on process death; a live-only view has no meaning once
// its process is gone.
func (id StoreID) Live() bool {
	return id.Type == metrics.GaugeType && id.Mode.Live()
}

func (id StoreID) owner() string {
	if id.Archived {
		return archivedOwner
	}
	return strconv.Itoa(id.PID)
}
