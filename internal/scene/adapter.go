// Package scene определяет границу между ядром репликации и сценой
// хост-приложения. Ядро не знает, как сцена устроена внутри: оно
// сэмплирует и записывает состояние через Adapter.
//
// Сцена не обязана быть потокобезопасной — все вызовы Adapter происходят
// на кооперативном потоке тика.
package scene

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/annel0/netreplica/internal/codec"
)

// Handle — непрозрачный идентификатор объекта сцены. 0 — недействителен.
type Handle uint64

// Sample — мгновенный снимок реплицируемых свойств объекта,
// снятый сервером на тике
type Sample struct {
	Position    mgl32.Vec3
	Orientation mgl32.Vec3
	Scale       mgl32.Vec3
	Velocity    mgl32.Vec3

	Model     int16
	Animation int16
	Particle  int16

	Sound       int16
	SoundRadius uint8

	ViewRadius float32

	Attached   bool
	AttachedTo Handle

	Is2D       bool
	Compressed bool

	Blob []byte
}

// Adapter — минимальный контракт сцены, который требуется ядру
type Adapter interface {
	// Sample снимает реплицируемые свойства объекта (сторона сервера)
	Sample(h Handle) (Sample, bool)

	// Правки трансформа (сторона клиента)
	SetPosition(h Handle, v mgl32.Vec3)
	SetOrientation(h Handle, v mgl32.Vec3)
	SetScale(h Handle, v mgl32.Vec3)
	SetVelocity(h Handle, v mgl32.Vec3)
	Position(h Handle) mgl32.Vec3
	Orientation(h Handle) mgl32.Vec3
	Scale(h Handle) mgl32.Vec3
	Velocity(h Handle) mgl32.Vec3

	// Ресурсы по индексам прекэша
	AttachModel(h Handle, idx int16)
	AttachAnimation(h Handle, idx int16)
	AttachParticle(h Handle, idx int16)

	// Звук: 3D-плеер с max_distance = radius, 2D-плеер без позиции.
	// Плееры освобождают себя сами по завершении.
	PlaySound3D(h Handle, idx int16, radius uint8)
	PlaySound2D(h Handle, idx int16)
	StopSounds(h Handle)

	// Precache прогревает ресурсы согласованных списков до первого снапшота
	Precache(tables *codec.PrecacheTables) error

	// Instantiate создаёт реплику нужной размерности в корне сцены (клиент)
	Instantiate(is2D bool) Handle

	// Destroy удаляет объект сцены
	Destroy(h Handle)

	// SyncViewports распространяет применённые изменения во
	// вспомогательные вьюпорты после обработки датаграммы
	SyncViewports()
}
