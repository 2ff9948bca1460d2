package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

// seq and created_at must come from the same atomic counter update; a
// separate app-server time.Now() could order two concurrent inserts
// against their seqs.
func TestCounterUpdateAllocatesSeqAndTimestampTogether(t *testing.T) {
	u := counterUpdate()

	inc, ok := u["$inc"].(bson.M)
	require.True(t, ok, "seq increment missing")
	assert.Equal(t, int64(1), inc["seq"])

	stamp, ok := u["$currentDate"].(bson.M)
	require.True(t, ok, "server-side timestamp missing from the increment")
	assert.Equal(t, true, stamp["updated_at"])
}
