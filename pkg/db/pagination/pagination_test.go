package pagination

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	token, err := EncodeCursor(Cursor{ID: "1842"})
	require.NoError(t, err)

	cursor, err := DecodeCursor(token)
	require.NoError(t, err)
	require.NotNil(t, cursor)
	assert.Equal(t, "1842", cursor.ID)
}

func TestDecodeCursorEmpty(t *testing.T) {
	cursor, err := DecodeCursor("  ")
	assert.NoError(t, err)
	assert.Nil(t, cursor)
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	_, err := DecodeCursor("not-a-cursor!!")
	assert.ErrorIs(t, err, ErrInvalidCursor)

	token, err := EncodeCursor(Cursor{})
	require.NoError(t, err)
	_, err = DecodeCursor(token)
	assert.ErrorIs(t, err, ErrInvalidCursor)
}

func TestBuildCursorPageInfo(t *testing.T) {
	ids := []int{1, 2, 3, 4}
	page, info := BuildCursorPageInfo(ids, 3, func(v int) string { return strconv.Itoa(v) })

	assert.Equal(t, []int{1, 2, 3}, page)
	assert.True(t, info.HasMore)

	cursor, err := DecodeCursor(info.NextPageToken)
	require.NoError(t, err)
	assert.Equal(t, "3", cursor.ID)

	page, info = BuildCursorPageInfo(ids[:2], 3, func(v int) string { return strconv.Itoa(v) })
	assert.Len(t, page, 2)
	assert.False(t, info.HasMore)
}
