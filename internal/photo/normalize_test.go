package photo

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vbonduro/obrafix/internal/domain"
	"github.com/vbonduro/obrafix/internal/jsontree"
	"github.com/vbonduro/obrafix/internal/report"
)

func ptr(f float64) *float64 { return &f }

func TestDecode(t *testing.T) {
	tests := []struct {
		name   string
		raw    any
		kind   Kind
		record domain.PhotoRecord
	}{
		{
			name: "nil is absent",
			raw:  nil,
			kind: Absent,
		},
		{
			name: "blank string is absent",
			raw:  "  ",
			kind: Absent,
		},
		{
			name:   "https string",
			raw:    "https://cdn.test/obra/1.jpg",
			kind:   Remote,
			record: domain.PhotoRecord{ID: DeriveID("https://cdn.test/obra/1.jpg"), URL: "https://cdn.test/obra/1.jpg"},
		},
		{
			name:   "file string stays pending",
			raw:    "file:///data/user/0/cache/1.jpg",
			kind:   PendingLocal,
			record: domain.PhotoRecord{ID: DeriveID("file:///data/user/0/cache/1.jpg"), URL: "file:///data/user/0/cache/1.jpg"},
		},
		{
			name: "http string is malformed",
			raw:  "http://insecure.test/1.jpg",
			kind: Malformed,
		},
		{
			name:   "object passes fields through",
			raw:    map[string]any{"id": "abc", "url": "https://cdn.test/2.jpg", "latitude": -23.5, "longitude": -46.6},
			kind:   Remote,
			record: domain.PhotoRecord{ID: "abc", URL: "https://cdn.test/2.jpg", Latitude: ptr(-23.5), Longitude: ptr(-46.6)},
		},
		{
			name:   "object without coordinates defaults to null",
			raw:    map[string]any{"id": "abc", "url": "https://cdn.test/3.jpg"},
			kind:   Remote,
			record: domain.PhotoRecord{ID: "abc", URL: "https://cdn.test/3.jpg"},
		},
		{
			name:   "object without id gets derived id",
			raw:    map[string]any{"url": "https://cdn.test/4.jpg", "latitude": nil},
			kind:   Remote,
			record: domain.PhotoRecord{ID: DeriveID("https://cdn.test/4.jpg"), URL: "https://cdn.test/4.jpg"},
		},
		{
			name:   "numeric id is kept as text",
			raw:    map[string]any{"id": json.Number("1712345678901"), "url": "https://cdn.test/5.jpg"},
			kind:   Remote,
			record: domain.PhotoRecord{ID: "1712345678901", URL: "https://cdn.test/5.jpg"},
		},
		{
			name:   "object with local url is pending",
			raw:    map[string]any{"id": "x", "url": "file:///tmp/6.jpg", "latitude": 1.0},
			kind:   PendingLocal,
			record: domain.PhotoRecord{ID: "x", URL: "file:///tmp/6.jpg", Latitude: ptr(1.0)},
		},
		{
			name:   "android content uri stays pending",
			raw:    "content://media/external/images/1",
			kind:   PendingLocal,
			record: domain.PhotoRecord{ID: DeriveID("content://media/external/images/1"), URL: "content://media/external/images/1"},
		},
		{
			name:   "ios photo library uri stays pending",
			raw:    "ph://ABC-123/L0/001",
			kind:   PendingLocal,
			record: domain.PhotoRecord{ID: DeriveID("ph://ABC-123/L0/001"), URL: "ph://ABC-123/L0/001"},
		},
		{
			name:   "record without id gets derived id",
			raw:    domain.PhotoRecord{URL: "https://cdn.test/8.jpg"},
			kind:   Remote,
			record: domain.PhotoRecord{ID: DeriveID("https://cdn.test/8.jpg"), URL: "https://cdn.test/8.jpg"},
		},
		{
			name:   "record pointer without id gets derived id",
			raw:    &domain.PhotoRecord{URL: "file:///tmp/9.jpg", Latitude: ptr(2)},
			kind:   PendingLocal,
			record: domain.PhotoRecord{ID: DeriveID("file:///tmp/9.jpg"), URL: "file:///tmp/9.jpg", Latitude: ptr(2)},
		},
		{
			name: "object without url",
			raw:  map[string]any{"id": "x"},
			kind: Malformed,
		},
		{
			name: "object with non-string url",
			raw:  map[string]any{"url": 12.0},
			kind: Malformed,
		},
		{
			name: "number",
			raw:  42.0,
			kind: Malformed,
		},
		{
			name: "nested array",
			raw:  []any{"https://cdn.test/7.jpg"},
			kind: Malformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Decode(tt.raw)
			assert.Equal(t, tt.kind, e.Kind)
			if tt.kind == Remote || tt.kind == PendingLocal {
				assert.Equal(t, tt.record, e.Record)
			}
			if tt.kind == Malformed {
				assert.NotEmpty(t, e.Reason)
			}
		})
	}
}

func TestDecodeNeverPromotesLocalFiles(t *testing.T) {
	inputs := []string{
		"file:///a.jpg",
		"file://",
		"file:///storage/emulated/0/DCIM/https://evil.jpg",
		"file:///var/mobile/Containers/Data/x.heic",
	}
	for _, in := range inputs {
		e := Decode(in)
		assert.Equal(t, PendingLocal, e.Kind, in)
		assert.False(t, e.Record.Synced(), in)
		assert.Equal(t, in, e.Record.URL)
	}
}

func TestDecodeKeepsRemoteURLExactly(t *testing.T) {
	inputs := []string{
		"https://x.supabase.co/storage/v1/object/public/fotos/obra 1/a.jpg",
		"https://cdn.test/a.jpg?token=a&b=%20",
		"https://",
	}
	for _, in := range inputs {
		e := Decode(in)
		require.Equal(t, Remote, e.Kind, in)
		assert.Equal(t, in, e.Record.URL)
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	rec := domain.PhotoRecord{ID: "p-1", URL: "https://cdn.test/p.jpg", Latitude: ptr(-3.1), Longitude: ptr(-60.02)}

	fromStruct := Decode(rec)
	assert.Equal(t, rec, fromStruct.Record)

	fromPtr := Decode(&rec)
	assert.Equal(t, rec, fromPtr.Record)

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	raw, err := jsontree.Decode(data)
	require.NoError(t, err)
	fromJSON := Decode(raw)
	assert.Equal(t, Remote, fromJSON.Kind)
	assert.Equal(t, rec, fromJSON.Record)

	again := Decode(fromJSON.Record)
	assert.Equal(t, rec, again.Record)
}

func TestDeriveIDIsStable(t *testing.T) {
	assert.Equal(t, DeriveID("https://a.test/1.jpg"), DeriveID("https://a.test/1.jpg"))
	assert.NotEqual(t, DeriveID("https://a.test/1.jpg"), DeriveID("https://a.test/2.jpg"))
}

func TestNormalizeList(t *testing.T) {
	collector := &report.Collector{}
	n := NewNormalizer(collector)

	raw, err := jsontree.Decode([]byte(`[
		"https://cdn.test/1.jpg",
		null,
		{"id": "2", "url": "https://cdn.test/2.jpg", "latitude": -1.5, "longitude": 2},
		"file:///cache/3.jpg",
		{"foo": "bar"}
	]`))
	require.NoError(t, err)

	res := n.NormalizeList(context.Background(), "OB-9", "fotos_antes", raw)

	require.Len(t, res.Records, 3)
	assert.Equal(t, "https://cdn.test/1.jpg", res.Records[0].URL)
	assert.Equal(t, "2", res.Records[1].ID)
	assert.Equal(t, ptr(2), res.Records[1].Longitude)
	assert.Equal(t, "file:///cache/3.jpg", res.Records[2].URL)
	assert.Equal(t, 2, res.RemoteCount())

	require.Len(t, res.Pending, 1)
	require.Len(t, res.Anomalies, 2)
	assert.Equal(t, domain.Anomaly{
		Obra:   "OB-9",
		Column: "fotos_antes",
		Path:   "fotos_antes[3]",
		Kind:   domain.AnomalyPendingLocal,
		Value:  "file:///cache/3.jpg",
		Reason: "photo was never uploaded from the device",
	}, res.Anomalies[0])
	assert.Equal(t, "fotos_antes[4]", res.Anomalies[1].Path)
	assert.Equal(t, domain.AnomalyMalformed, res.Anomalies[1].Kind)
	assert.Equal(t, `{"foo":"bar"}`, res.Anomalies[1].Value)

	assert.Equal(t, res.Anomalies, collector.Anomalies())
}

func TestNormalizeListSingleValueAndNil(t *testing.T) {
	n := NewNormalizer(nil)

	single := n.NormalizeList(context.Background(), "OB-1", "fotos_depois", "https://cdn.test/x.jpg")
	require.Len(t, single.Records, 1)
	assert.Empty(t, single.Anomalies)

	empty := n.NormalizeList(context.Background(), "OB-1", "fotos_depois", nil)
	assert.NotNil(t, empty.Records)
	assert.Empty(t, empty.Records)
	assert.Empty(t, empty.Anomalies)

	bad := n.NormalizeList(context.Background(), "OB-1", "fotos_depois", true)
	require.Len(t, bad.Anomalies, 1)
	assert.Equal(t, "fotos_depois", bad.Anomalies[0].Path)
}

func TestDescribeTruncatesOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("ç", 150)
	got := describe(long)

	assert.True(t, utf8.ValidString(got))
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.LessOrEqual(t, len(got), 200+len("..."))

	assert.Equal(t, `"short"`, describe("short"))
}
