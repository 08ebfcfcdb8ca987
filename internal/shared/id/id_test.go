package id

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceIsMonotonic(t *testing.T) {
	src := NewSource(nil)
	frozen := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	src.now = func() time.Time { return frozen }

	prev := src.Next()
	for i := 0; i < 500; i++ {
		next := src.Next()
		require.Equal(t, 1, next.Compare(prev), "ids within one millisecond must increase")
		prev = next
	}
	assert.True(t, frozen.Equal(time.UnixMilli(int64(prev.Time()))))
}

func TestPrefixedIDs(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		prefix string
	}{
		{"session", NewSessionID().String(), SessionPrefix},
		{"port", NewPortID().String(), PortPrefix},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, strings.HasPrefix(tt.id, tt.prefix+"_"))
			assert.True(t, IsValid(tt.id))
		})
	}
	assert.NotEqual(t, NewSessionID(), NewSessionID())
}

func TestConnectionID(t *testing.T) {
	_, err := uuid.Parse(NewConnectionID().String())
	assert.NoError(t, err)
	assert.NotEqual(t, NewConnectionID(), NewConnectionID())
}

func TestTimestamp(t *testing.T) {
	before := time.Now().Add(-time.Second)
	ts, err := Timestamp(NewSessionID().String())
	require.NoError(t, err)
	assert.True(t, ts.After(before))

	for _, bad := range []string{"sess_not-a-ulid", "garbage", ""} {
		_, err = Timestamp(bad)
		assert.Error(t, err, bad)
		assert.False(t, IsValid(bad), bad)
	}
}
