package replica

import (
	"sync"

	"github.com/annel0/netreplica/internal/codec"
)

// Snapshot — авторитетная запись состояния всех реплицируемых объектов
// на кадре Frame, плюс идентификаторы, удалённые именно в этом кадре.
//
// Номера кадров — 24-битный монотонный счётчик. Переполнение наступает
// через ~9.7 суток при 20 Гц; обработка переноса не реализована,
// сравнения — обычные целочисленные.
type Snapshot struct {
	Frame   uint32
	Objects []codec.ObjectState
	Deleted []codec.NetworkID

	byIndex map[uint16]int
}

// Get возвращает состояние объекта по индексу слота
func (s *Snapshot) Get(idx uint16) *codec.ObjectState {
	if s == nil {
		return nil
	}
	if i, ok := s.byIndex[idx]; ok {
		return &s.Objects[i]
	}
	return nil
}

func (s *Snapshot) buildIndex() {
	s.byIndex = make(map[uint16]int, len(s.Objects))
	for i := range s.Objects {
		s.byIndex[s.Objects[i].ID.Index()] = i
	}
}

// Store — упорядоченное хранилище снапшотов. Мутируется только на тике
// сервера; RWMutex защищает чтения статусного сервера.
type Store struct {
	mu     sync.RWMutex
	frames map[uint32]*Snapshot
	order  []uint32
}

// NewStore создаёт пустое хранилище
func NewStore() *Store {
	return &Store{frames: make(map[uint32]*Snapshot)}
}

// Append добавляет снапшот. O(1).
func (s *Store) Append(snap *Snapshot) {
	snap.buildIndex()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.frames[snap.Frame] = snap
	s.order = append(s.order, snap.Frame)
}

// Find возвращает снапшот кадра или nil, если он уже собран сборщиком —
// в этом случае сервер кодирует клиенту полный (без baseline) снапшот
func (s *Store) Find(frame uint32) *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.frames[frame]
}

// GC выбрасывает все снапшоты с кадром меньше minAcked
func (s *Store) GC(minAcked uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.order[:0]
	for _, f := range s.order {
		if f < minAcked {
			delete(s.frames, f)
		} else {
			kept = append(kept, f)
		}
	}
	s.order = kept
}

// Depth возвращает число удерживаемых снапшотов
func (s *Store) Depth() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.order)
}

// DeletedSince собирает идентификаторы, удалённые в кадрах
// after < frame ≤ upto. after < 0 означает «с начала сессии».
func (s *Store) DeletedSince(after int64, upto uint32) []codec.NetworkID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []codec.NetworkID
	seen := make(map[codec.NetworkID]struct{})
	for _, f := range s.order {
		if int64(f) <= after || f > upto {
			continue
		}
		for _, id := range s.frames[f].Deleted {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
