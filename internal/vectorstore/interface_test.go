package vectorstore

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCollectionName(t *testing.T) {
	valid := []string{"land_plots", "document", "Plots-2024", strings.Repeat("a", 64)}
	for _, name := range valid {
		assert.NoError(t, ValidateCollectionName(name), name)
	}

	invalid := []string{"", "has space", "../etc", "dots.not.allowed", strings.Repeat("a", 65)}
	for _, name := range invalid {
		assert.ErrorIs(t, ValidateCollectionName(name), ErrInvalidCollectionName, name)
	}
}

func TestPointID_JSON(t *testing.T) {
	data, err := json.Marshal([]PointID{NumID(42), UUIDID("2f1e6b4c-3a5d-4c8e-9f10-123456789abc")})
	require.NoError(t, err)
	assert.JSONEq(t, `[42, "2f1e6b4c-3a5d-4c8e-9f10-123456789abc"]`, string(data))

	var ids []PointID
	require.NoError(t, json.Unmarshal(data, &ids))
	assert.Equal(t, NumID(42), ids[0])
	assert.Equal(t, "2f1e6b4c-3a5d-4c8e-9f10-123456789abc", ids[1].UUID())

	var bad PointID
	assert.Error(t, json.Unmarshal([]byte(`"not-a-uuid"`), &bad))
	assert.Error(t, json.Unmarshal([]byte(`-1`), &bad))
}

func TestParsePointID(t *testing.T) {
	id, err := ParsePointID("17")
	require.NoError(t, err)
	assert.True(t, id.IsNum())
	assert.Equal(t, uint64(17), id.Num())

	fresh := NewUUID()
	id, err = ParsePointID(fresh.String())
	require.NoError(t, err)
	assert.Equal(t, fresh, id)

	_, err = ParsePointID("plot-17")
	assert.Error(t, err)
}

func TestPointID_Less(t *testing.T) {
	a := UUIDID("00000000-0000-0000-0000-000000000001")
	b := UUIDID("00000000-0000-0000-0000-000000000002")

	assert.True(t, NumID(1).Less(NumID(2)))
	assert.False(t, NumID(2).Less(NumID(1)))
	assert.True(t, NumID(1000).Less(a))
	assert.False(t, a.Less(NumID(0)))
	assert.True(t, a.Less(b))
}
