package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobRoundTrip(t *testing.T) {
	cfg := DefaultWireConfig()

	cur := NewObjectState(1, false)
	cur.Blob = bytes.Repeat([]byte{0xAB}, 255) // максимальная длина

	data := encodeOne(t, &cur, nil, cfg)
	require.NotNil(t, data)
	// заголовок + длина + 255 байт
	assert.Len(t, data, 3+1+255)

	rec := decodeOne(t, data, cfg)
	require.True(t, rec.Raw.Has(FlagHasBlob))
	assert.Equal(t, cur.Blob, rec.Blob)
}

// Blob передаётся только при изменении
func TestBlobDeltaSuppression(t *testing.T) {
	cfg := DefaultWireConfig()

	baseline := NewObjectState(1, false)
	baseline.Blob = []byte{1, 2, 3}

	cur := baseline
	data := encodeOne(t, &cur, &baseline, cfg)
	assert.Nil(t, data, "неизменившийся blob подавляется вместе с записью")

	cur.Blob = []byte{1, 2, 4}
	rec := decodeOne(t, encodeOne(t, &cur, &baseline, cfg), cfg)
	require.True(t, rec.Raw.Has(FlagHasBlob))
	assert.Equal(t, []byte{1, 2, 4}, rec.Blob)
}

// Пустой blob у свежего объекта не поднимает флаг
func TestEmptyBlobNotSent(t *testing.T) {
	cfg := DefaultWireConfig()

	cur := NewObjectState(1, false)
	cur.Position = identityScale // любое ненулевое поле

	rec := decodeOne(t, encodeOne(t, &cur, nil, cfg), cfg)
	assert.False(t, rec.Raw.Has(FlagHasBlob))
	assert.Nil(t, rec.Blob)
}

// Сброс blob в пустой доезжает как запись нулевой длины
func TestBlobCleared(t *testing.T) {
	cfg := DefaultWireConfig()

	baseline := NewObjectState(1, false)
	baseline.Blob = []byte{9}

	cur := baseline
	cur.Blob = nil

	data := encodeOne(t, &cur, &baseline, cfg)
	require.NotNil(t, data)

	rec := decodeOne(t, data, cfg)
	require.True(t, rec.Raw.Has(FlagHasBlob))
	assert.Empty(t, rec.Blob)
}
