package audioio

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyon-audio/metrocore/pkg/clicksynth"
)

func TestBounceToWAVHeader(t *testing.T) {
	var o Output
	require.NoError(t, o.Open(8000))
	o.ScheduleClick(clicksynth.KindAccent, 0)

	var buf bytes.Buffer
	require.NoError(t, BounceToWAV(&buf, &o, 0.5))

	data := buf.Bytes()
	require.GreaterOrEqual(t, len(data), 44)
	assert.Equal(t, "RIFF", string(data[0:4]))
	assert.Equal(t, "WAVE", string(data[8:12]))
	assert.Equal(t, "fmt ", string(data[12:16]))
	assert.Equal(t, "data", string(data[36:40]))

	wantDataSize := int(0.5 * 8000 * 2)
	assert.Equal(t, 44+wantDataSize, len(data))
}
