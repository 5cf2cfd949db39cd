package codec

import (
	"fmt"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	crunch "github.com/superwhiskers/crunch/v3"
)

func testTables() *PrecacheTables {
	return &PrecacheTables{
		Sounds:     []string{"step.ogg", "shot.ogg"},
		Models:     []string{"crate.glb", "barrel.glb", "drone.glb"},
		Animations: []string{"idle", "walk"},
		Particles:  []string{"sparks"},
	}
}

func TestInitPacketRoundTrip(t *testing.T) {
	tables := testTables()
	cfg := DefaultWireConfig()
	cfg.Widths = tables.Widths()

	cube := NewObjectState(0, false)
	cube.Position = mgl32.Vec3{10, 0, 5}
	cube.ModelIndex = 0

	data := EncodeInit(nil, 2, tables, 17, []*ObjectState{&cube}, cfg)

	pkt, gotCfg, err := DecodeInit(data, nil, DefaultWireConfig())
	require.NoError(t, err)

	assert.EqualValues(t, 2, pkt.PlayerIndex)
	assert.EqualValues(t, 17, pkt.Frame)
	assert.Equal(t, tables.Sounds, pkt.Tables.Sounds)
	assert.Equal(t, tables.Models, pkt.Tables.Models)
	assert.Equal(t, tables.Animations, pkt.Tables.Animations)
	assert.Equal(t, tables.Particles, pkt.Tables.Particles)
	require.Len(t, pkt.Records, 1)
	assert.Equal(t, cube.Position, pkt.Records[0].Position)

	// ширины индексов выводятся из согласованных списков
	assert.Equal(t, 1, gotCfg.Widths.Model)
}

func TestInitPacketApplicationPrefix(t *testing.T) {
	tables := testTables()
	cfg := DefaultWireConfig()
	cfg.Widths = tables.Widths()

	writer := func(b *crunch.Buffer) {
		b.Grow(4)
		b.WriteBytesNext([]byte("GAME"))
	}
	var gotPrefix []byte
	reader := func(b *crunch.Buffer) error {
		gotPrefix = b.ReadBytesNext(4)
		if string(gotPrefix) != "GAME" {
			return fmt.Errorf("неожиданный префикс %q", gotPrefix)
		}
		return nil
	}

	data := EncodeInit(writer, 0, tables, 1, nil, cfg)
	pkt, _, err := DecodeInit(data, reader, DefaultWireConfig())
	require.NoError(t, err)
	assert.Equal(t, []byte("GAME"), gotPrefix)
	assert.Empty(t, pkt.Records)
}

// Ширина индекса списка длиннее 255 — два байта
func TestIndexWidthDerivation(t *testing.T) {
	tables := testTables()
	assert.Equal(t, IndexWidths{Model: 1, Animation: 1, Particle: 1}, tables.Widths())

	big := make([]string, 300)
	for i := range big {
		big[i] = fmt.Sprintf("model_%d", i)
	}
	tables.Models = big
	assert.Equal(t, 2, tables.Widths().Model)
}

func TestNameListNullTerminated(t *testing.T) {
	b := crunch.NewBuffer()
	writeNameList(b, []string{"a", "", "с юникодом"})

	names, err := readNameList(crunch.NewBuffer(b.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "", "с юникодом"}, names)
}

func TestDecodeInitTruncated(t *testing.T) {
	tables := testTables()
	cfg := DefaultWireConfig()
	cfg.Widths = tables.Widths()

	data := EncodeInit(nil, 1, tables, 5, nil, cfg)
	for cut := 1; cut < len(data); cut++ {
		_, _, err := DecodeInit(data[:cut], nil, DefaultWireConfig())
		assert.Error(t, err, "обрезка до %d байт", cut)
	}
}
