package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPermissionSetWildcard(t *testing.T) {
	p := Wildcard()

	assert.True(t, p.Allows("dashboard"))
	assert.True(t, p.Allows(FeatureGPSTracking))
	// Wildcard covers keys that did not exist when the role was stored
	assert.True(t, p.Allows("somePageAddedNextQuarter"))
}

func TestPermissionSetExplicit(t *testing.T) {
	p := Explicit("dashboard", FeatureGPSTracking)

	assert.True(t, p.Allows("dashboard"))
	assert.True(t, p.Allows(FeatureGPSTracking))
	// Absent keys are denied, including newly introduced ones
	assert.False(t, p.Allows("reports"))
	assert.False(t, p.Allows("somePageAddedNextQuarter"))

	empty := Explicit()
	assert.False(t, empty.Allows("dashboard"))
}

func TestPermissionSetRoundTrip(t *testing.T) {
	p := Explicit("dashboard", "vehicles")

	value, err := p.Value()
	assert.NoError(t, err)

	var got PermissionSet
	assert.NoError(t, got.Scan(value))
	assert.True(t, got.Allows("dashboard"))
	assert.False(t, got.Allows("reports"))
	assert.False(t, got.All)

	w := Wildcard()
	value, err = w.Value()
	assert.NoError(t, err)

	var gotW PermissionSet
	assert.NoError(t, gotW.Scan(value))
	assert.True(t, gotW.Allows("anything"))
}

func TestIsFeatureKey(t *testing.T) {
	assert.True(t, IsFeatureKey(FeatureGPSTracking))
	assert.True(t, IsFeatureKey(FeatureAPIAccess))
	assert.False(t, IsFeatureKey("dashboard"))
	assert.False(t, IsFeatureKey(""))
}
