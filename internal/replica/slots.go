// Package replica содержит серверный репликатор, клиентский
// восстановитель, хранилище снапшотов, таблицу слотов и отсечение
// видимости.
package replica

import (
	"errors"

	"github.com/annel0/netreplica/internal/codec"
	"github.com/annel0/netreplica/internal/scene"
)

// SlotCapacity — ёмкость таблицы слотов; индекс слота и есть 12-битный
// сетевой идентификатор
const SlotCapacity = codec.MaxObjects

// ErrTableFull — бюджет идентификаторов сессии исчерпан; фатально
var ErrTableFull = errors.New("replica: таблица слотов заполнена")

// ErrNotFound возвращается, когда дескриптор не зарегистрирован
var ErrNotFound = errors.New("replica: дескриптор не найден")

type slotState uint8

const (
	slotEmpty slotState = iota
	slotOccupied
	// slotTombstone отмечает удалённый слот. Пробирование при поиске
	// проходит сквозь надгробия и останавливается только на никогда не
	// занимавшихся слотах; простое «пометить пустым» делало бы
	// ненаходимыми ключи, вставленные дальше по цепочке коллизий.
	// Перепаковка цепочек не годится вовсе: индекс слота — это сетевой
	// идентификатор, сдвиг переназначил бы идентификаторы живых объектов.
	slotTombstone
)

type slotEntry struct {
	handle scene.Handle
	state  slotState
}

// SlotTable — таблица с открытой адресацией на 4096 записей,
// отображающая дескрипторы сцены в 12-битные сетевые идентификаторы.
// Мутируется только на потоке тика.
type SlotTable struct {
	entries [SlotCapacity]slotEntry
	count   int
}

// NewSlotTable создаёт пустую таблицу
func NewSlotTable() *SlotTable {
	return &SlotTable{}
}

// hashHandle сворачивает дескриптор XOR-ом его 12-битных кусков
func hashHandle(h scene.Handle) uint16 {
	v := uint64(h)
	acc := uint16(0)
	for v != 0 {
		acc ^= uint16(v & 0xFFF)
		v >>= 12
	}
	return acc & 0xFFF
}

// Insert помещает дескриптор в таблицу и возвращает назначенный
// идентификатор. ErrTableFull фатален для сессии.
func (t *SlotTable) Insert(h scene.Handle) (codec.NetworkID, error) {
	start := hashHandle(h)
	firstTomb := -1

	for i := 0; i < SlotCapacity; i++ {
		idx := (int(start) + i) % SlotCapacity
		switch t.entries[idx].state {
		case slotEmpty:
			if firstTomb >= 0 {
				idx = firstTomb
			}
			t.entries[idx] = slotEntry{handle: h, state: slotOccupied}
			t.count++
			return codec.NetworkID(idx), nil
		case slotTombstone:
			if firstTomb < 0 {
				firstTomb = idx
			}
		}
	}

	// Пустых слотов не осталось; можно переиспользовать надгробие
	if firstTomb >= 0 {
		t.entries[firstTomb] = slotEntry{handle: h, state: slotOccupied}
		t.count++
		return codec.NetworkID(firstTomb), nil
	}
	return 0, ErrTableFull
}

// InsertAt принудительно занимает слот, назначенный сервером (клиент)
func (t *SlotTable) InsertAt(id codec.NetworkID, h scene.Handle) {
	idx := id.Index()
	if t.entries[idx].state != slotOccupied {
		t.count++
	}
	t.entries[idx] = slotEntry{handle: h, state: slotOccupied}
}

// Find ищет идентификатор по дескриптору той же последовательностью
// пробирования, что и Insert
func (t *SlotTable) Find(h scene.Handle) (codec.NetworkID, bool) {
	start := hashHandle(h)

	for i := 0; i < SlotCapacity; i++ {
		idx := (int(start) + i) % SlotCapacity
		e := &t.entries[idx]
		switch e.state {
		case slotEmpty:
			return 0, false
		case slotOccupied:
			if e.handle == h {
				return codec.NetworkID(idx), true
			}
		}
	}
	return 0, false
}

// RemoveAt освобождает слот, оставляя надгробие
func (t *SlotTable) RemoveAt(id codec.NetworkID) {
	idx := id.Index()
	if t.entries[idx].state == slotOccupied {
		t.entries[idx] = slotEntry{state: slotTombstone}
		t.count--
	}
}

// GetAt возвращает дескриптор слота без поиска
func (t *SlotTable) GetAt(id codec.NetworkID) (scene.Handle, bool) {
	e := &t.entries[id.Index()]
	if e.state != slotOccupied {
		return 0, false
	}
	return e.handle, true
}

// Len возвращает число занятых слотов
func (t *SlotTable) Len() int {
	return t.count
}

// ForEach обходит занятые слоты в порядке индексов
func (t *SlotTable) ForEach(fn func(id codec.NetworkID, h scene.Handle)) {
	for i := range t.entries {
		if t.entries[i].state == slotOccupied {
			fn(codec.NetworkID(i), t.entries[i].handle)
		}
	}
}
