package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRiderProfile_IsComplete(t *testing.T) {
	t.Parallel()

	full := RiderProfile{FullName: "Asha Rao", Gender: "female", City: "Pune", Mobile: "9876543210"}
	require.True(t, full.IsComplete())

	// any one mandatory field missing makes the profile incomplete, other fields do not matter
	mutators := map[string]func(p *RiderProfile){
		"name":   func(p *RiderProfile) { p.FullName = "" },
		"gender": func(p *RiderProfile) { p.Gender = "  " },
		"city":   func(p *RiderProfile) { p.City = "" },
		"mobile": func(p *RiderProfile) { p.Mobile = "" },
	}
	for name, mut := range mutators {
		p := full
		p.Email = "a@b.c"
		p.DOB = "1990-01-01"
		p.Status = StatusActive
		mut(&p)
		assert.False(t, p.IsComplete(), "missing %s must be incomplete", name)
	}

	var nilProfile *RiderProfile
	assert.False(t, nilProfile.IsComplete())
	assert.False(t, (&RiderProfile{}).IsComplete())
}

func TestFlag_JSON(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(struct {
		P Flag `json:"p"`
		Q Flag `json:"q"`
	}{P: true})
	require.NoError(t, err)
	require.JSONEq(t, `{"p":1,"q":0}`, string(b))

	for in, want := range map[string]Flag{
		`1`: true, `0`: false, `true`: true, `false`: false,
		`"1"`: true, `"0"`: false, `null`: false, `"true"`: true,
	} {
		var f Flag
		require.NoError(t, json.Unmarshal([]byte(in), &f), in)
		assert.Equal(t, want, f, in)
	}

	var f Flag
	require.Error(t, json.Unmarshal([]byte(`2`), &f))
}

func TestRelationship_Valid(t *testing.T) {
	t.Parallel()

	for _, r := range Relationships {
		assert.True(t, r.Valid(), r)
	}
	assert.True(t, Relationship("Mother").Valid())
	assert.False(t, Relationship("cousin").Valid())
	assert.False(t, Relationship("").Valid())
}

func TestPrimaryHelpers(t *testing.T) {
	t.Parallel()

	cs := []EmergencyContact{{ID: 1}, {ID: 2, IsPrimary: true}, {ID: 3}}
	assert.Equal(t, 1, PrimaryIndex(cs))
	assert.Equal(t, 1, CountPrimary(cs))
	assert.Equal(t, -1, PrimaryIndex(nil))
	assert.Equal(t, 0, CountPrimary(nil))
}
