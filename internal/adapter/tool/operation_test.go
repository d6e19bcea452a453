package tool

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"absensi-ai/internal/domain"
)

type Ref struct {
	ID   int64  `json:"id,omitempty" jsonschema:"description=ID unik"`
	Nama string `json:"nama,omitempty" jsonschema:"description=Nama\\, boleh sebagian"`
}

type lookupParams struct {
	Ref
	Tanggal string `json:"tanggal" jsonschema:"required,description=Tanggal YYYY-MM-DD"`
	Status  string `json:"status,omitempty" jsonschema:"enum=alfa,enum=sakit"`
}

type schemaDoc struct {
	Type       string                    `json:"type"`
	Required   []string                  `json:"required"`
	Properties map[string]map[string]any `json:"properties"`
	Schema     string                    `json:"$schema"`
}

func TestGenerateSchemaFlattensEmbeddedStructs(t *testing.T) {
	raw, err := GenerateSchema[lookupParams]()
	require.NoError(t, err)

	var doc schemaDoc
	require.NoError(t, json.Unmarshal(raw, &doc))

	assert.Equal(t, "object", doc.Type)
	assert.Empty(t, doc.Schema)
	assert.Equal(t, []string{"tanggal"}, doc.Required)
	assert.Contains(t, doc.Properties, "id")
	assert.Contains(t, doc.Properties, "nama")
	assert.Equal(t, "integer", doc.Properties["id"]["type"])
	assert.Equal(t, "Nama, boleh sebagian", doc.Properties["nama"]["description"])
	assert.Equal(t, []any{"alfa", "sakit"}, doc.Properties["status"]["enum"])
	require.NoError(t, CompileSchema("lookup", raw))
}

func TestOperationExecute(t *testing.T) {
	op, err := NewOperation("lookup", "cari",
		func(_ context.Context, p lookupParams) (map[string]any, error) {
			if p.ID == 0 {
				return nil, domain.Problemf("Harus menyertakan id")
			}
			if p.ID < 0 {
				return nil, errors.New("database down")
			}
			return map[string]any{"id": p.ID, "tanggal": p.Tanggal}, nil
		}, nopLogger())
	require.NoError(t, err)

	assert.Equal(t, "lookup", op.Name())
	assert.Equal(t, "cari", op.Description())
	assert.Equal(t, "lookup", op.Schema().Name)
	assert.NotEmpty(t, op.Schema().Parameters)

	res, err := op.Execute(context.Background(), json.RawMessage(`{"id": 7, "tanggal": "2026-03-02"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id": 7, "tanggal": "2026-03-02"}`, res.Content)

	res, err = op.Execute(context.Background(), json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"error": "Harus menyertakan id"}`, res.Content)

	_, err = op.Execute(context.Background(), json.RawMessage(`{"id": -1}`))
	assert.EqualError(t, err, "database down")
}

func TestOperationNilPointerResultIsNull(t *testing.T) {
	type rekap struct{ Total int }
	op, err := NewOperation("rekap", "rekap",
		func(context.Context, struct{}) (*rekap, error) { return nil, nil }, nil)
	require.NoError(t, err)

	res, err := op.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "null", res.Content)
}
