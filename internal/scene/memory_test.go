package scene

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/annel0/netreplica/internal/codec"
)

func TestMemorySceneSpawnSample(t *testing.T) {
	s := NewMemoryScene()

	h := s.Spawn(Sample{
		Position: mgl32.Vec3{1, 2, 3},
		Model:    2,
	})

	sample, ok := s.Sample(h)
	if !ok {
		t.Fatal("Объект не найден после Spawn")
	}
	if sample.Position != (mgl32.Vec3{1, 2, 3}) {
		t.Errorf("Неверная позиция: %v", sample.Position)
	}
	// нулевой масштаб нормализуется к единичному
	if sample.Scale != (mgl32.Vec3{1, 1, 1}) {
		t.Errorf("Ожидался единичный масштаб, получен %v", sample.Scale)
	}
}

func TestMemorySceneInstantiateDestroy(t *testing.T) {
	s := NewMemoryScene()

	h := s.Instantiate(true)
	sample, ok := s.Sample(h)
	if !ok || !sample.Is2D {
		t.Fatal("Реплика 2D не создана")
	}
	if sample.Model != codec.NoIndex {
		t.Errorf("У свежей реплики не должно быть модели, получено %d", sample.Model)
	}

	s.Destroy(h)
	if s.Exists(h) {
		t.Error("Объект существует после Destroy")
	}
}

func TestMemorySceneSounds(t *testing.T) {
	s := NewMemoryScene()
	h := s.Instantiate(false)

	s.PlaySound3D(h, 1, 20)
	s.PlaySound2D(h, 0)

	players := s.ActiveSounds(h)
	if len(players) != 2 {
		t.Fatalf("Ожидалось 2 плеера, получено %d", len(players))
	}
	if players[0].UnitSize != 3.0 {
		t.Errorf("unit_size = 0.15*radius: ожидалось 3.0, получено %f", players[0].UnitSize)
	}
	if !players[1].Is2D {
		t.Error("Второй плеер должен быть 2D")
	}

	s.StopSounds(h)
	if len(s.ActiveSounds(h)) != 0 {
		t.Error("Плееры не освобождены")
	}
}

func TestMemorySceneViewportSync(t *testing.T) {
	s := NewMemoryScene()
	s.SyncViewports()
	s.SyncViewports()
	if s.ViewportSyncs() != 2 {
		t.Errorf("Ожидалось 2 синхронизации, получено %d", s.ViewportSyncs())
	}
}
