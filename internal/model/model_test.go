package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusOrdering(t *testing.T) {
	assert.True(t, StatusRead.IsAtLeast(StatusSent))
	assert.True(t, StatusRead.IsAtLeast(StatusDelivered))
	assert.True(t, StatusRead.IsAtLeast(StatusRead))
	assert.True(t, StatusDelivered.IsAtLeast(StatusSent))
	assert.False(t, StatusDelivered.IsAtLeast(StatusRead))
	assert.False(t, StatusSent.IsAtLeast(StatusDelivered))
	assert.True(t, StatusSent.IsAtLeast(StatusSent))
}

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusSent.Valid())
	assert.True(t, StatusDelivered.Valid())
	assert.True(t, StatusRead.Valid())
	assert.False(t, Status("").Valid())
	assert.False(t, Status("archived").Valid())
}

func TestIDSetAddIsIdempotent(t *testing.T) {
	var set IDSet

	set, changed := set.Add("alice")
	assert.True(t, changed)
	set, changed = set.Add("bob")
	assert.True(t, changed)
	set, changed = set.Add("alice")
	assert.False(t, changed)

	assert.Equal(t, IDSet{"alice", "bob"}, set)
	assert.True(t, set.Contains("alice"))
	assert.False(t, set.Contains("carol"))
}

func TestIDSetCloneIsIndependent(t *testing.T) {
	original := IDSet{"alice"}
	clone, changed := original.Clone().Add("bob")
	assert.True(t, changed)
	assert.Equal(t, IDSet{"alice"}, original)
	assert.Equal(t, IDSet{"alice", "bob"}, clone)
}

func TestIDSetValueEncodesNilAsEmptyArray(t *testing.T) {
	var set IDSet
	value, err := set.Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", value)

	value, err = IDSet{"alice", "bob"}.Value()
	require.NoError(t, err)
	assert.Equal(t, `["alice","bob"]`, value)
}

func TestIDSetScan(t *testing.T) {
	var set IDSet
	require.NoError(t, set.Scan(`["alice","bob"]`))
	assert.Equal(t, IDSet{"alice", "bob"}, set)

	require.NoError(t, set.Scan([]byte(`[]`)))
	assert.Empty(t, set)

	require.NoError(t, set.Scan(nil))
	assert.NotNil(t, set)
	assert.Empty(t, set)

	require.Error(t, set.Scan(42))
}
