package scene

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/annel0/netreplica/internal/codec"
)

// SoundPlayer — активный аудио-плеер MemoryScene (для проверок в тестах
// и демонстрационного прогона)
type SoundPlayer struct {
	Index    int16
	Is2D     bool
	Radius   uint8
	UnitSize float32
}

type memObject struct {
	sample  Sample
	sounds  []SoundPlayer
	created bool // создан ядром как реплика, а не хостом
}

// MemoryScene — эталонная сцена в памяти. Используется демо-бинарём и
// тестами; хост-приложения подключают собственный Adapter.
type MemoryScene struct {
	mu         sync.Mutex
	objects    map[Handle]*memObject
	nextHandle Handle

	precached *codec.PrecacheTables

	viewportSyncs int
}

var _ Adapter = (*MemoryScene)(nil)

// NewMemoryScene создаёт пустую сцену
func NewMemoryScene() *MemoryScene {
	return &MemoryScene{
		objects:    make(map[Handle]*memObject),
		nextHandle: 1,
	}
}

// Spawn регистрирует объект хоста с заданными свойствами (сторона сервера)
func (s *MemoryScene) Spawn(sample Sample) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sample.Scale == (mgl32.Vec3{}) {
		sample.Scale = mgl32.Vec3{1, 1, 1}
	}
	h := s.nextHandle
	s.nextHandle++
	s.objects[h] = &memObject{sample: sample}
	return h
}

// Poke изменяет свойства существующего объекта (сторона сервера)
func (s *MemoryScene) Poke(h Handle, fn func(*Sample)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if obj, ok := s.objects[h]; ok {
		fn(&obj.sample)
	}
}

// Sample снимает свойства объекта
func (s *MemoryScene) Sample(h Handle) (Sample, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, ok := s.objects[h]
	if !ok {
		return Sample{}, false
	}
	out := obj.sample
	out.Blob = append([]byte(nil), obj.sample.Blob...)
	return out, true
}

func (s *MemoryScene) poke(h Handle, fn func(*memObject)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if obj, ok := s.objects[h]; ok {
		fn(obj)
	}
}

// SetPosition устанавливает позицию объекта
func (s *MemoryScene) SetPosition(h Handle, v mgl32.Vec3) {
	s.poke(h, func(o *memObject) { o.sample.Position = v })
}

// SetOrientation устанавливает ориентацию объекта
func (s *MemoryScene) SetOrientation(h Handle, v mgl32.Vec3) {
	s.poke(h, func(o *memObject) { o.sample.Orientation = v })
}

// SetScale устанавливает масштаб объекта
func (s *MemoryScene) SetScale(h Handle, v mgl32.Vec3) {
	s.poke(h, func(o *memObject) { o.sample.Scale = v })
}

// SetVelocity устанавливает скорость объекта
func (s *MemoryScene) SetVelocity(h Handle, v mgl32.Vec3) {
	s.poke(h, func(o *memObject) { o.sample.Velocity = v })
}

// Position возвращает позицию объекта
func (s *MemoryScene) Position(h Handle) mgl32.Vec3 {
	sm, _ := s.Sample(h)
	return sm.Position
}

// Orientation возвращает ориентацию объекта
func (s *MemoryScene) Orientation(h Handle) mgl32.Vec3 {
	sm, _ := s.Sample(h)
	return sm.Orientation
}

// Scale возвращает масштаб объекта
func (s *MemoryScene) Scale(h Handle) mgl32.Vec3 {
	sm, _ := s.Sample(h)
	return sm.Scale
}

// Velocity возвращает скорость объекта
func (s *MemoryScene) Velocity(h Handle) mgl32.Vec3 {
	sm, _ := s.Sample(h)
	return sm.Velocity
}

// AttachModel назначает модель по индексу прекэша
func (s *MemoryScene) AttachModel(h Handle, idx int16) {
	s.poke(h, func(o *memObject) { o.sample.Model = idx })
}

// AttachAnimation назначает анимацию по индексу прекэша
func (s *MemoryScene) AttachAnimation(h Handle, idx int16) {
	s.poke(h, func(o *memObject) { o.sample.Animation = idx })
}

// AttachParticle назначает систему частиц по индексу прекэша
func (s *MemoryScene) AttachParticle(h Handle, idx int16) {
	s.poke(h, func(o *memObject) { o.sample.Particle = idx })
}

// PlaySound3D запускает пространственный плеер
func (s *MemoryScene) PlaySound3D(h Handle, idx int16, radius uint8) {
	s.poke(h, func(o *memObject) {
		o.sounds = append(o.sounds, SoundPlayer{
			Index:    idx,
			Radius:   radius,
			UnitSize: 0.15 * float32(radius),
		})
	})
}

// PlaySound2D запускает плоский плеер
func (s *MemoryScene) PlaySound2D(h Handle, idx int16) {
	s.poke(h, func(o *memObject) {
		o.sounds = append(o.sounds, SoundPlayer{Index: idx, Is2D: true})
	})
}

// StopSounds останавливает и освобождает все плееры объекта
func (s *MemoryScene) StopSounds(h Handle) {
	s.poke(h, func(o *memObject) { o.sounds = nil })
}

// ActiveSounds возвращает активные плееры объекта
func (s *MemoryScene) ActiveSounds(h Handle) []SoundPlayer {
	s.mu.Lock()
	defer s.mu.Unlock()

	if obj, ok := s.objects[h]; ok {
		return append([]SoundPlayer(nil), obj.sounds...)
	}
	return nil
}

// Precache запоминает согласованные списки ресурсов
func (s *MemoryScene) Precache(tables *codec.PrecacheTables) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.precached = tables
	return nil
}

// Precached возвращает списки, переданные в Precache
func (s *MemoryScene) Precached() *codec.PrecacheTables {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.precached
}

// Instantiate создаёт реплику нужной размерности в корне сцены
func (s *MemoryScene) Instantiate(is2D bool) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.nextHandle
	s.nextHandle++
	s.objects[h] = &memObject{
		sample: Sample{
			Scale: mgl32.Vec3{1, 1, 1},
			Is2D:  is2D,
			Model: codec.NoIndex, Animation: codec.NoIndex,
			Particle: codec.NoIndex, Sound: codec.NoIndex,
		},
		created: true,
	}
	return h
}

// Destroy удаляет объект сцены
func (s *MemoryScene) Destroy(h Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.objects, h)
}

// SyncViewports распространяет изменения во вспомогательные вьюпорты
func (s *MemoryScene) SyncViewports() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.viewportSyncs++
}

// ViewportSyncs возвращает число вызовов SyncViewports
func (s *MemoryScene) ViewportSyncs() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.viewportSyncs
}

// Count возвращает число объектов сцены
func (s *MemoryScene) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.objects)
}

// Exists сообщает, существует ли объект
func (s *MemoryScene) Exists(h Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.objects[h]
	return ok
}
