package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when an obra lookup matches no record.
	ErrNotFound = errors.New("obra not found")
	// ErrMissingConfig is returned when a required environment variable is absent.
	ErrMissingConfig = errors.New("missing required configuration")
)

const (
	SchemeRemote = "https://"
	SchemeLocal  = "file://"
)

// LocalSchemes are the URI schemes a mobile device hands out for files that
// only exist on that device. SchemeLocal is the only one readable as a path.
var LocalSchemes = []string{
	SchemeLocal,
	"content://",
	"ph://",
	"assets-library://",
}

// IsLocalURL reports whether s points at a file on the capturing device.
func IsLocalURL(s string) bool {
	for _, p := range LocalSchemes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// PhotoRecord is one photograph attached to an obra. A record is synced when
// its URL is remote and pending while it still points at a device file.
type PhotoRecord struct {
	ID        string   `json:"id"`
	URL       string   `json:"url"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (p PhotoRecord) Synced() bool {
	return strings.HasPrefix(p.URL, SchemeRemote)
}

func (p PhotoRecord) Pending() bool {
	return IsLocalURL(p.URL)
}

// Obra is a snapshot of one construction-job row. Only the photo-bearing JSON
// columns are loaded; the hosted database owns everything else.
type Obra struct {
	ID        string
	Key       string
	Columns   map[string]json.RawMessage
	UpdatedAt time.Time
}

// PhotoColumns lists the JSON columns that may hold photos, in report order.
var PhotoColumns = []string{
	"fotos_antes",
	"fotos_durante",
	"fotos_depois",
	"fotos_postes",
	"fotos_seccionamento",
	"fotos_aterramento",
	"fotos_haste",
	"fotos_termometro",
	"checklist",
}

// IsPhotoColumn reports whether name is one of PhotoColumns.
func IsPhotoColumn(name string) bool {
	for _, c := range PhotoColumns {
		if c == name {
			return true
		}
	}
	return false
}

// IsPhotoList reports whether col holds a flat list of photos rather than
// nested checklist structures.
func IsPhotoList(col string) bool {
	return strings.HasPrefix(col, "fotos_")
}

// SectionColumn returns the column a reconstructed section is merged into.
func SectionColumn(section string) string {
	return "fotos_" + section
}

type AnomalyKind string

const (
	AnomalyPendingLocal AnomalyKind = "pending_local"
	AnomalyMalformed    AnomalyKind = "malformed"
)

// Anomaly is a photo value that needs operator attention.
type Anomaly struct {
	Obra   string
	Column string
	Path   string
	Kind   AnomalyKind
	Value  string
	Reason string
}
