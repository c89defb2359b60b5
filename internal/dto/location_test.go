package dto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptional_Presence(t *testing.T) {
	var req UpdateLocationRequest
	require.NoError(t, json.Unmarshal([]byte(`{"ods_code":null,"display_name":"Ward B"}`), &req))

	assert.True(t, req.ODSCode.Set)
	assert.True(t, req.ODSCode.IsNull())
	assert.True(t, req.DisplayName.Set)
	assert.Equal(t, "Ward B", *req.DisplayName.Value)
	assert.False(t, req.ParentLocation.Set)
	assert.False(t, req.ParentLocation.IsNull())
}

func TestProductUpdate_ClosedDate(t *testing.T) {
	var p ProductUpdate
	require.NoError(t, json.Unmarshal([]byte(`{"uuid":"p1","closed_date":"2024-03-01","closed_reason":null}`), &p))

	assert.Equal(t, "2024-03-01", p.ClosedDate.Value.String())
	assert.True(t, p.ClosedReason.IsNull())
	assert.False(t, p.ClosedReasonOther.Set)

	assert.Error(t, json.Unmarshal([]byte(`{"closed_date":"03/01/2024"}`), &p))
}

func TestParentRef_Shapes(t *testing.T) {
	chain := &ParentResponse{
		UUID: "W", LocationType: "ward", DisplayName: "Ward A",
		Parent: &ParentResponse{UUID: "H", LocationType: "hospital", DisplayName: "General"},
	}
	assert.Equal(t, 2, chain.Depth())

	compact, err := json.Marshal(&LocationResponse{UUID: "B", Parent: &ParentRef{UUID: "W"}})
	require.NoError(t, err)
	assert.Contains(t, string(compact), `"parent":"W"`)
	assert.NotContains(t, string(compact), `"children"`)
	assert.NotContains(t, string(compact), `"dh_products"`)

	full, err := json.Marshal(&LocationResponse{
		UUID:           "B",
		Parent:         &ParentRef{UUID: "W", Chain: chain},
		Children:       []string{},
		LocationDetail: &LocationDetail{Products: []ProductResponse{}},
	})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(full, &decoded))
	parent := decoded["parent"].(map[string]any)
	assert.Equal(t, "W", parent["uuid"])
	assert.Equal(t, "H", parent["parent"].(map[string]any)["uuid"])
	assert.Equal(t, []any{}, decoded["children"])
	assert.Equal(t, []any{}, decoded["dh_products"])
}

func TestLocationSearchForm_Query(t *testing.T) {
	form := LocationSearchForm{
		ODSCode:       "H1",
		LocationTypes: "ward| bay||",
		ProductName:   []string{"SEND, GDM", "", "DBM,"},
		Active:        "false",
		Compact:       true,
	}
	q, err := form.Query()
	require.NoError(t, err)

	assert.Equal(t, "H1", *q.ODSCode)
	assert.Equal(t, []string{"ward", "bay"}, q.LocationTypes)
	assert.Equal(t, []string{"SEND", "GDM", "DBM"}, q.ProductNames)
	assert.False(t, *q.Active)
	assert.True(t, q.Compact)
	assert.Nil(t, q.UUIDs)

	empty, err := (&LocationSearchForm{}).Query()
	require.NoError(t, err)
	assert.Nil(t, empty.ODSCode)
	assert.Nil(t, empty.LocationTypes)
	assert.Nil(t, empty.ProductNames)
	assert.Nil(t, empty.Active)
}

func TestLocationSearchForm_Active(t *testing.T) {
	tests := []struct {
		value   string
		want    *bool
		wantErr bool
	}{
		{value: "", want: nil},
		{value: "null", want: nil},
		{value: "true", want: ptrTo(true)},
		{value: "False", want: ptrTo(false)},
		{value: "yes", wantErr: true},
		{value: "1", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			q, err := (&LocationSearchForm{Active: tt.value}).Query()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, q.Active)
		})
	}
}

func ptrTo[T any](v T) *T { return &v }
