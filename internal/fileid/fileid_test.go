package fileid_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvsdb/kvs/internal/fileid"
)

func TestParseFormatRoundTrip(t *testing.T) {
	cases := []fileid.FileId{
		fileid.Append(1),
		fileid.Append(42),
		fileid.Compact(0),
		fileid.Temp(7),
	}
	for _, id := range cases {
		parsed, err := fileid.Parse(id.String())
		require.NoError(t, err)
		assert.Equal(t, id, parsed)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, name := range []string{"", "x_1", "a_", "a_-1", "a_1.2", "a1", "schema.json"} {
		_, err := fileid.Parse(name)
		assert.Error(t, err, name)
	}
}

func TestOrdering(t *testing.T) {
	assert.True(t, fileid.Compact(5).Less(fileid.Append(0)))
	assert.True(t, fileid.Append(100).Less(fileid.Temp(0)))
	assert.True(t, fileid.Append(1).Less(fileid.Append(2)))
	assert.False(t, fileid.Append(2).Less(fileid.Append(1)))
}

func TestPredicates(t *testing.T) {
	assert.True(t, fileid.Append(1).IsAppend())
	assert.True(t, fileid.Compact(1).IsCompact())
	assert.True(t, fileid.Temp(1).IsTemp())
	assert.False(t, fileid.Append(1).IsCompact())
}
