package replica

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/netreplica/internal/codec"
	"github.com/annel0/netreplica/internal/scene"
)

// collidingHandles возвращает n дескрипторов с одинаковым хешем
func collidingHandles(n int) []scene.Handle {
	out := make([]scene.Handle, 0, n)
	base := scene.Handle(0x123)
	for i := 0; i < n; i++ {
		// старшие биты за пределами 12-битного куска меняют значение,
		// но XOR-свёртка одинакова при зеркальных кусках
		h := base | scene.Handle(i)<<12 | scene.Handle(i)<<24
		if hashHandle(h) == hashHandle(base) {
			out = append(out, h)
		}
	}
	return out
}

func TestSlotInsertFind(t *testing.T) {
	tbl := NewSlotTable()

	id, err := tbl.Insert(100)
	require.NoError(t, err)

	got, ok := tbl.Find(100)
	require.True(t, ok)
	assert.Equal(t, id, got)

	h, ok := tbl.GetAt(id)
	require.True(t, ok)
	assert.EqualValues(t, 100, h)

	_, ok = tbl.Find(200)
	assert.False(t, ok)
}

// Удаление из середины цепочки коллизий не прячет соседей
func TestSlotCollisionRemoval(t *testing.T) {
	tbl := NewSlotTable()

	handles := collidingHandles(16)
	require.GreaterOrEqual(t, len(handles), 3, "нужна цепочка коллизий")

	ids := make(map[scene.Handle]uint16)
	for _, h := range handles {
		id, err := tbl.Insert(h)
		require.NoError(t, err)
		ids[h] = id.Index()
	}

	// удаляем средний элемент цепочки
	mid := handles[len(handles)/2]
	midID, ok := tbl.Find(mid)
	require.True(t, ok)
	tbl.RemoveAt(midID)

	// все остальные обязаны находиться по прежним идентификаторам:
	// индекс слота — это сетевой идентификатор, двигаться он не может
	for _, h := range handles {
		if h == mid {
			_, found := tbl.Find(h)
			assert.False(t, found)
			continue
		}
		id, found := tbl.Find(h)
		require.True(t, found, "дескриптор %d потерян после удаления из цепочки", h)
		assert.Equal(t, ids[h], id.Index(), "идентификатор сместился")
	}
}

// Надгробие переиспользуется при вставке
func TestSlotTombstoneReuse(t *testing.T) {
	tbl := NewSlotTable()

	handles := collidingHandles(4)
	require.GreaterOrEqual(t, len(handles), 3)

	for _, h := range handles[:3] {
		_, err := tbl.Insert(h)
		require.NoError(t, err)
	}

	id1, _ := tbl.Find(handles[1])
	tbl.RemoveAt(id1)

	// повторная вставка того же дескриптора занимает надгробие
	newID, err := tbl.Insert(handles[1])
	require.NoError(t, err)
	assert.Equal(t, id1, newID)

	// а сосед дальше по цепочке по-прежнему находится
	_, found := tbl.Find(handles[2])
	assert.True(t, found)
}

func TestSlotTableFull(t *testing.T) {
	tbl := NewSlotTable()

	for i := 0; i < SlotCapacity; i++ {
		_, err := tbl.Insert(scene.Handle(i + 1))
		require.NoError(t, err)
	}
	assert.Equal(t, SlotCapacity, tbl.Len())

	_, err := tbl.Insert(scene.Handle(99999))
	assert.ErrorIs(t, err, ErrTableFull)
}

func TestSlotInsertAt(t *testing.T) {
	tbl := NewSlotTable()

	tbl.InsertAt(17, 500)
	h, ok := tbl.GetAt(17)
	require.True(t, ok)
	assert.EqualValues(t, 500, h)

	tbl.RemoveAt(17)
	_, ok = tbl.GetAt(17)
	assert.False(t, ok)
	assert.Zero(t, tbl.Len())
}

func TestSlotForEachOrder(t *testing.T) {
	tbl := NewSlotTable()
	tbl.InsertAt(5, 50)
	tbl.InsertAt(2, 20)
	tbl.InsertAt(9, 90)

	var order []uint16
	tbl.ForEach(func(id codec.NetworkID, h scene.Handle) {
		order = append(order, id.Index())
	})
	assert.Equal(t, []uint16{2, 5, 9}, order)
}
