// Package photo turns the loosely typed photo values stored in obra JSON
// columns into PhotoRecords.
package photo

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/vbonduro/obrafix/internal/domain"
	"github.com/vbonduro/obrafix/internal/jsontree"
	"github.com/vbonduro/obrafix/internal/report"
)

type Kind int

const (
	Absent Kind = iota
	Remote
	PendingLocal
	Malformed
)

func (k Kind) String() string {
	switch k {
	case Absent:
		return "absent"
	case Remote:
		return "remote"
	case PendingLocal:
		return "pending_local"
	default:
		return "malformed"
	}
}

// Entry is the decoded form of one raw photo value. Record is set for Remote
// and PendingLocal; Reason explains a Malformed value.
type Entry struct {
	Kind   Kind
	Record domain.PhotoRecord
	Raw    any
	Reason string
}

// DeriveID returns a stable identifier for a photo known only by its URL.
func DeriveID(url string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(url)).String()
}

// Decode classifies one raw value. It never panics and never fails; values it
// cannot use come back as Malformed.
func Decode(raw any) Entry {
	switch v := raw.(type) {
	case nil:
		return Entry{Kind: Absent}
	case string:
		return decodeString(v)
	case domain.PhotoRecord:
		return classify(v, raw)
	case *domain.PhotoRecord:
		if v == nil {
			return Entry{Kind: Absent}
		}
		return classify(*v, raw)
	case *jsontree.Object:
		if v == nil {
			return Entry{Kind: Absent}
		}
		return decodeObject(v.Get, raw)
	case map[string]any:
		return decodeObject(func(k string) (any, bool) {
			f, ok := v[k]
			return f, ok
		}, raw)
	default:
		return Entry{Kind: Malformed, Raw: raw, Reason: fmt.Sprintf("unsupported photo value of type %T", raw)}
	}
}

func decodeString(s string) Entry {
	if strings.TrimSpace(s) == "" {
		return Entry{Kind: Absent, Raw: s}
	}
	switch {
	case domain.IsLocalURL(s):
		return Entry{Kind: PendingLocal, Raw: s, Record: domain.PhotoRecord{ID: DeriveID(s), URL: s}}
	case strings.HasPrefix(s, domain.SchemeRemote):
		return Entry{Kind: Remote, Raw: s, Record: domain.PhotoRecord{ID: DeriveID(s), URL: s}}
	default:
		return Entry{Kind: Malformed, Raw: s, Reason: "unrecognised url scheme"}
	}
}

func decodeObject(get func(string) (any, bool), raw any) Entry {
	u, ok := get("url")
	if !ok {
		return Entry{Kind: Malformed, Raw: raw, Reason: "object has no url field"}
	}
	url, ok := u.(string)
	if !ok {
		return Entry{Kind: Malformed, Raw: raw, Reason: fmt.Sprintf("url field is %T, not string", u)}
	}

	rec := domain.PhotoRecord{URL: url}
	if id, ok := get("id"); ok {
		rec.ID = idString(id)
	}
	if lat, ok := get("latitude"); ok {
		rec.Latitude = coordinate(lat)
	}
	if lng, ok := get("longitude"); ok {
		rec.Longitude = coordinate(lng)
	}
	return classify(rec, raw)
}

// classify picks the kind by URL scheme and fills in a missing id.
func classify(rec domain.PhotoRecord, raw any) Entry {
	if rec.ID == "" && strings.TrimSpace(rec.URL) != "" {
		rec.ID = DeriveID(rec.URL)
	}
	switch {
	case rec.Pending():
		return Entry{Kind: PendingLocal, Record: rec, Raw: raw}
	case rec.Synced():
		return Entry{Kind: Remote, Record: rec, Raw: raw}
	case strings.TrimSpace(rec.URL) == "":
		return Entry{Kind: Malformed, Raw: raw, Reason: "empty url"}
	default:
		return Entry{Kind: Malformed, Raw: raw, Reason: "unrecognised url scheme"}
	}
}

func idString(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case json.Number:
		return id.String()
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case int:
		return strconv.Itoa(id)
	case int64:
		return strconv.FormatInt(id, 10)
	default:
		return ""
	}
}

// coordinate keeps numeric coordinates and maps everything else to nil.
func coordinate(v any) *float64 {
	var f float64
	switch c := v.(type) {
	case float64:
		f = c
	case float32:
		f = float64(c)
	case int:
		f = float64(c)
	case int64:
		f = float64(c)
	case json.Number:
		parsed, err := c.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	case *float64:
		if c == nil {
			return nil
		}
		f = *c
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// Result is a normalized photo column.
type Result struct {
	// Records holds remote and pending records in their original order.
	Records   []domain.PhotoRecord
	Pending   []Entry
	Anomalies []domain.Anomaly
}

func (r Result) RemoteCount() int {
	return len(r.Records) - len(r.Pending)
}

type Normalizer struct {
	reporter report.Reporter
}

func NewNormalizer(reporter report.Reporter) *Normalizer {
	if reporter == nil {
		reporter = report.Nop{}
	}
	return &Normalizer{reporter: reporter}
}

// NormalizeList normalizes a column value, which may be an array or a single
// photo value. Pending and malformed values are reported, not dropped silently.
func (n *Normalizer) NormalizeList(ctx context.Context, obra, column string, raw any) Result {
	res := Result{Records: make([]domain.PhotoRecord, 0)}

	items, isList := raw.([]any)
	if !isList {
		items = []any{raw}
	}

	for i, item := range items {
		path := column
		if isList {
			path = fmt.Sprintf("%s[%d]", column, i)
		}

		e := Decode(item)
		switch e.Kind {
		case Absent:
			continue
		case Remote:
			res.Records = append(res.Records, e.Record)
		case PendingLocal:
			res.Records = append(res.Records, e.Record)
			res.Pending = append(res.Pending, e)
			n.capture(ctx, &res, domain.Anomaly{
				Obra:   obra,
				Column: column,
				Path:   path,
				Kind:   domain.AnomalyPendingLocal,
				Value:  e.Record.URL,
				Reason: "photo was never uploaded from the device",
			})
		case Malformed:
			n.capture(ctx, &res, domain.Anomaly{
				Obra:   obra,
				Column: column,
				Path:   path,
				Kind:   domain.AnomalyMalformed,
				Value:  describe(e.Raw),
				Reason: e.Reason,
			})
		}
	}
	return res
}

func (n *Normalizer) capture(ctx context.Context, res *Result, a domain.Anomaly) {
	res.Anomalies = append(res.Anomalies, a)
	n.reporter.CaptureAnomaly(ctx, a)
}

func describe(v any) string {
	b, err := jsontree.Encode(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	const maxLen = 200
	if len(b) > maxLen {
		cut := maxLen
		for cut > 0 && !utf8.RuneStart(b[cut]) {
			cut--
		}
		return string(b[:cut]) + "..."
	}
	return string(b)
}
