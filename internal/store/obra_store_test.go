package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vbonduro/obrafix/internal/db"
	"github.com/vbonduro/obrafix/internal/domain"
)

func openObraDB(t *testing.T) *ObraStore {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "obras.db"))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, d.Close()) })
	return NewObraStore(d)
}

func seed(t *testing.T, s *ObraStore, id, key string, cols map[string]string) {
	t.Helper()
	raw := make(map[string]json.RawMessage, len(cols))
	for k, v := range cols {
		raw[k] = json.RawMessage(v)
	}
	require.NoError(t, s.Insert(context.Background(), &domain.Obra{ID: id, Key: key, Columns: raw}))
}

func TestObraStoreGetByKey(t *testing.T) {
	s := openObraDB(t)
	seed(t, s, "id-1", "OB-100", map[string]string{
		"fotos_antes": `["https://cdn.test/a.jpg"]`,
		"checklist":   `{"postes":[]}`,
	})

	obra, err := s.GetByKey(context.Background(), "OB-100")
	require.NoError(t, err)
	assert.Equal(t, "id-1", obra.ID)
	assert.Equal(t, "OB-100", obra.Key)
	assert.JSONEq(t, `["https://cdn.test/a.jpg"]`, string(obra.Columns["fotos_antes"]))
	assert.JSONEq(t, `{"postes":[]}`, string(obra.Columns["checklist"]))
	assert.NotContains(t, obra.Columns, "fotos_haste")
	assert.False(t, obra.UpdatedAt.IsZero())
}

func TestObraStoreGetByKey_NotFound(t *testing.T) {
	s := openObraDB(t)

	_, err := s.GetByKey(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestObraStoreList(t *testing.T) {
	s := openObraDB(t)
	seed(t, s, "id-2", "OB-2", nil)
	seed(t, s, "id-1", "OB-1", map[string]string{"fotos_depois": `[]`})

	obras, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, obras, 2)
	assert.Equal(t, "OB-1", obras[0].Key)
	assert.Equal(t, "OB-2", obras[1].Key)
}

func TestObraStoreUpdateColumns(t *testing.T) {
	s := openObraDB(t)
	ctx := context.Background()
	seed(t, s, "id-1", "OB-1", map[string]string{"fotos_haste": `["file:///h.jpg"]`})

	err := s.UpdateColumns(ctx, "id-1", map[string]json.RawMessage{
		"fotos_haste":      json.RawMessage(`[{"id":"h","url":"https://cdn.test/h.jpg","latitude":null,"longitude":null}]`),
		"fotos_termometro": json.RawMessage(`[]`),
	})
	require.NoError(t, err)

	obra, err := s.GetByKey(ctx, "OB-1")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"h","url":"https://cdn.test/h.jpg","latitude":null,"longitude":null}]`, string(obra.Columns["fotos_haste"]))
	assert.JSONEq(t, `[]`, string(obra.Columns["fotos_termometro"]))
}

func TestObraStoreUpdateColumns_NotFound(t *testing.T) {
	s := openObraDB(t)

	err := s.UpdateColumns(context.Background(), "nope", map[string]json.RawMessage{"fotos_antes": json.RawMessage(`[]`)})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestObraStoreRejectsUnknownColumn(t *testing.T) {
	s := openObraDB(t)
	seed(t, s, "id-1", "OB-1", nil)

	err := s.UpdateColumns(context.Background(), "id-1", map[string]json.RawMessage{"obra; DROP TABLE obras": json.RawMessage(`1`)})
	assert.Error(t, err)

	_, err = s.GetByKey(context.Background(), "OB-1")
	assert.NoError(t, err)
}
