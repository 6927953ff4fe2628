package membership_test

import (
	"encoding/json"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-membership"
)

func TestCapabilitySet_Normalizes(t *testing.T) {
	set := membership.NewCapabilitySet("Tenor 1", "", "Aktiv", "Tenor 1", "Webmaster")

	assert.Equal(t, []string{"Aktiv", "Tenor 1", "Webmaster"}, set.Names())
	assert.Equal(t, 3, set.Len())
	assert.True(t, set.Has("Aktiv"))
	assert.False(t, set.Has("aktiv"))
}

func TestCapabilitySet_ZeroValue(t *testing.T) {
	var set membership.CapabilitySet

	assert.Equal(t, 0, set.Len())
	assert.False(t, set.Has("Aktiv"))
	assert.False(t, set.HasAny("Aktiv"))
	assert.Empty(t, slices.Collect(set.All()))

	data, err := json.Marshal(set)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}

func TestCapabilitySet_HasAny(t *testing.T) {
	set := membership.NewCapabilitySet("Bas 1", "Aktiv")

	assert.True(t, set.HasAny("Tenor 1", "Bas 1"))
	assert.False(t, set.HasAny("Tenor 1", "Tenor 2"))
	assert.False(t, set.HasAny())
}

func TestCapabilitySet_AllStopsEarly(t *testing.T) {
	set := membership.NewCapabilitySet("A", "B", "C")

	var seen []string
	for name := range set.All() {
		seen = append(seen, name)
		if name == "B" {
			break
		}
	}
	assert.Equal(t, []string{"A", "B"}, seen)
}

func TestCapabilitySet_Diff(t *testing.T) {
	tests := []struct {
		name       string
		current    []string
		desired    []string
		wantGrant  []string
		wantRevoke []string
	}{
		{name: "from empty", desired: []string{"B", "A"}, wantGrant: []string{"A", "B"}},
		{name: "to empty", current: []string{"A"}, wantRevoke: []string{"A"}},
		{name: "swap", current: []string{"A", "B"}, desired: []string{"B", "C"}, wantGrant: []string{"C"}, wantRevoke: []string{"A"}},
		{name: "unchanged", current: []string{"A"}, desired: []string{"A", "A"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			grant, revoke := membership.NewCapabilitySet(tt.current...).Diff(membership.NewCapabilitySet(tt.desired...))
			assert.Equal(t, tt.wantGrant, grant)
			assert.Equal(t, tt.wantRevoke, revoke)
		})
	}
}

func TestCapabilitySet_JSON(t *testing.T) {
	var set membership.CapabilitySet
	require.NoError(t, json.Unmarshal([]byte(`["Tenor 2","Aktiv","Aktiv"]`), &set))
	assert.Equal(t, []string{"Aktiv", "Tenor 2"}, set.Names())

	data, err := json.Marshal(set)
	require.NoError(t, err)
	assert.JSONEq(t, `["Aktiv","Tenor 2"]`, string(data))
}
