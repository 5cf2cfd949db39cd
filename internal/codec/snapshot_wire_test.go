package codec

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotWriterRoundTrip(t *testing.T) {
	cfg := DefaultWireConfig()

	w := NewSnapshotWriter(0x010203)
	for i := 0; i < 3; i++ {
		st := NewObjectState(NetworkID(i), false)
		st.Position = mgl32.Vec3{float32(i), 0, 0}
		st.ModelIndex = int16(i)
		require.True(t, w.TryAdd(&st, nil, cfg, DeletionReserve(1)))
	}
	data := w.Finish([]NetworkID{42})

	pkt, err := DecodeSnapshot(data, cfg)
	require.NoError(t, err)
	assert.EqualValues(t, 0x010203, pkt.Frame)
	require.Len(t, pkt.Records, 3)
	assert.Equal(t, []NetworkID{42}, pkt.Deleted)

	for i, rec := range pkt.Records {
		assert.EqualValues(t, i, rec.Index())
		assert.Equal(t, mgl32.Vec3{float32(i), 0, 0}, rec.Position)
	}
}

// Датаграмма никогда не превышает 1400 байт
func TestSnapshotWriterBudget(t *testing.T) {
	cfg := DefaultWireConfig()

	w := NewSnapshotWriter(1)
	added := 0
	for i := 0; i < MaxObjects; i++ {
		st := NewObjectState(NetworkID(i%MaxObjects), false)
		st.Position = mgl32.Vec3{float32(i), float32(i), float32(i)}
		st.Orientation = mgl32.Vec3{1, 1, 1}
		st.Velocity = mgl32.Vec3{1, 0, 0}
		if !w.TryAdd(&st, nil, cfg, DeletionReserve(0)) {
			break
		}
		added++
	}

	require.Less(t, added, MaxObjects, "бюджет обязан был закончиться")
	data := w.Finish(nil)
	assert.LessOrEqual(t, len(data), MaxDatagramSize)
	assert.EqualValues(t, added, w.Count())

	// излишек объектов не попал в датаграмму, но она корректно разбирается
	pkt, err := DecodeSnapshot(data, cfg)
	require.NoError(t, err)
	assert.Len(t, pkt.Records, added)
}

// Подавленная запись не увеличивает счётчик и не занимает место
func TestSnapshotWriterSuppressed(t *testing.T) {
	cfg := DefaultWireConfig()

	st := NewObjectState(1, false)
	st.Position = mgl32.Vec3{5, 5, 5}

	w := NewSnapshotWriter(2)
	before := w.Len()
	require.True(t, w.TryAdd(&st, &st, cfg, 0))
	assert.Equal(t, before, w.Len())
	assert.Zero(t, w.Count())
}

func TestDecodeSnapshotTruncated(t *testing.T) {
	cfg := DefaultWireConfig()

	w := NewSnapshotWriter(9)
	st := NewObjectState(1, false)
	st.Position = mgl32.Vec3{1, 2, 3}
	require.True(t, w.TryAdd(&st, nil, cfg, 0))
	data := w.Finish([]NetworkID{7})

	for cut := 1; cut < len(data); cut++ {
		_, err := DecodeSnapshot(data[:cut], cfg)
		assert.Error(t, err, "обрезка до %d байт", cut)
	}
}
