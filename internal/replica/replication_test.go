package replica

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/netreplica/internal/codec"
	"github.com/annel0/netreplica/internal/scene"
)

// testWorld — связка серверного репликатора и клиентского
// восстановителя без сетевых каналов: датаграммы передаются из рук в руки
type testWorld struct {
	serverScene *scene.MemoryScene
	clientScene *scene.MemoryScene
	repl        *ServerReplicator
	client      *ClientReplica
	cursor      *ClientCursor
	tables      *codec.PrecacheTables
}

func newTestWorld(t *testing.T) *testWorld {
	t.Helper()

	tables := &codec.PrecacheTables{
		Sounds:     []string{"step", "shot"},
		Models:     []string{"crate", "barrel", "drone", "cube"},
		Animations: []string{"idle", "walk", "fly", "a3", "a4", "a5"},
		Particles:  []string{"sparks"},
	}

	cfg := codec.DefaultWireConfig()
	cfg.Widths = tables.Widths()

	w := &testWorld{
		serverScene: scene.NewMemoryScene(),
		clientScene: scene.NewMemoryScene(),
		tables:      tables,
		cursor:      NewClientCursor(0),
	}
	w.repl = NewServerReplicator(w.serverScene, cfg)
	w.client = NewClientReplica(w.clientScene, cfg, 100, 0.01)
	require.NoError(t, w.client.ApplyInit(&codec.InitPacket{Tables: tables}, cfg))

	// наблюдатель далеко позади объектов и смотрит вдоль +X, чтобы
	// отсечение видимости не вмешивалось в сценарии
	w.cursor.Viewer = Viewer{
		Position:    mgl32.Vec3{-100, 0, 0},
		Orientation: mgl32.Vec3{0, -math.Pi / 2, 0},
	}
	return w
}

// deliver строит кадр, кодирует его для клиента и применяет, имитируя
// подтверждение следующим input-пакетом
func (w *testWorld) deliver(t *testing.T) *Snapshot {
	t.Helper()
	snap := w.tick(t)
	w.ack(t)
	return snap
}

// tick строит кадр и применяет его без подтверждения
func (w *testWorld) tick(t *testing.T) *Snapshot {
	t.Helper()
	snap := w.repl.BuildSnapshot()
	payload, _ := w.repl.EncodeFor(w.cursor, snap)
	require.LessOrEqual(t, len(payload), codec.MaxDatagramSize)
	require.NoError(t, w.client.ApplySnapshot(payload))
	return snap
}

// drop строит кадр и теряет датаграмму
func (w *testWorld) drop(t *testing.T) *Snapshot {
	t.Helper()
	snap := w.repl.BuildSnapshot()
	_, _ = w.repl.EncodeFor(w.cursor, snap)
	return snap
}

// ack продвигает курсор клиента, как это делает input-пакет
func (w *testWorld) ack(t *testing.T) {
	t.Helper()
	if w.client.LastFrame() > w.cursor.LastAckedFrame {
		w.cursor.LastAckedFrame = w.client.LastFrame()
	}
}

// Статичный куб доезжает до клиента
func TestScenarioStaticCube(t *testing.T) {
	w := newTestWorld(t)

	h := w.serverScene.Spawn(scene.Sample{
		Position: mgl32.Vec3{10, 0, 5},
		Scale:    mgl32.Vec3{1, 1, 1},
		Model:    3,
		Animation: codec.NoIndex, Particle: codec.NoIndex, Sound: codec.NoIndex,
	})
	id, err := w.repl.RegisterObject(h)
	require.NoError(t, err)

	w.deliver(t)

	require.Equal(t, 1, w.client.ObjectCount())
	st := w.client.State(id.Index())
	require.NotNil(t, st)
	assert.Equal(t, mgl32.Vec3{10, 0, 5}, st.Position)
	assert.EqualValues(t, 3, st.ModelIndex)
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, st.Scale)

	ch, ok := w.client.Handle(id.Index())
	require.True(t, ok)
	assert.Equal(t, mgl32.Vec3{10, 0, 5}, w.clientScene.Position(ch))
}

// Снаряд по счислению — позиция и скорость после первого кадра
// не передаются, клиент интегрирует сам
func TestScenarioDeadReckoning(t *testing.T) {
	w := newTestWorld(t)

	h := w.serverScene.Spawn(scene.Sample{
		Velocity: mgl32.Vec3{100, 0, 0},
		Model:    codec.NoIndex, Animation: codec.NoIndex,
		Particle: codec.NoIndex, Sound: codec.NoIndex,
	})
	id, err := w.repl.RegisterObject(h)
	require.NoError(t, err)

	w.deliver(t)

	// сервер двигает снаряд по той же скорости
	w.serverScene.SetPosition(h, mgl32.Vec3{5, 0, 0})

	snap := w.repl.BuildSnapshot()
	payload, objects := w.repl.EncodeFor(w.cursor, snap)
	assert.Zero(t, objects, "ни позиция, ни скорость не должны отправляться")
	require.NoError(t, w.client.ApplySnapshot(payload))

	// клиент на t=50 мс экстраполирует (5,0,0)
	w.client.Advance(0.05)
	ch, _ := w.client.Handle(id.Index())
	assert.InDelta(t, 5, float64(w.clientScene.Position(ch).X()), 0.01)
}

// Потери UDP — дельта остаётся против старого baseline, GC ждёт
// подтверждения
func TestScenarioLossyUDP(t *testing.T) {
	w := newTestWorld(t)

	h := w.serverScene.Spawn(scene.Sample{
		Position: mgl32.Vec3{1, 0, 0},
		Model:    0, Animation: codec.NoIndex, Particle: codec.NoIndex, Sound: codec.NoIndex,
	})
	id, err := w.repl.RegisterObject(h)
	require.NoError(t, err)

	base := w.deliver(t) // клиент подтвердил этот кадр
	ackedFrame := base.Frame

	// три кадра, доехал только последний
	w.serverScene.SetPosition(h, mgl32.Vec3{2, 0, 0})
	w.drop(t)
	w.serverScene.SetPosition(h, mgl32.Vec3{3, 0, 0})
	w.drop(t)
	w.serverScene.SetPosition(h, mgl32.Vec3{4, 0, 0})
	delivered := w.tick(t) // применён, но ещё не подтверждён

	// клиент видит последнее состояние
	st := w.client.State(id.Index())
	assert.Equal(t, mgl32.Vec3{4, 0, 0}, st.Position)

	// сервер всё ещё хранит подтверждённый baseline
	require.NotNil(t, w.repl.Store().Find(ackedFrame))

	// подтверждение последнего кадра освобождает старые снапшоты
	w.ack(t)
	w.repl.BuildSnapshot()
	w.repl.GC(w.cursor.LastAckedFrame)
	assert.Nil(t, w.repl.Store().Find(ackedFrame))
	require.NotNil(t, w.repl.Store().Find(delivered.Frame))
}

// Переходы прикрепления
func TestScenarioAttachment(t *testing.T) {
	w := newTestWorld(t)

	hb := w.serverScene.Spawn(scene.Sample{
		Position: mgl32.Vec3{7, 7, 7},
		Model:    1, Animation: codec.NoIndex, Particle: codec.NoIndex, Sound: codec.NoIndex,
	})
	idB, err := w.repl.RegisterObject(hb)
	require.NoError(t, err)

	ha := w.serverScene.Spawn(scene.Sample{
		Velocity: mgl32.Vec3{10, 0, 0},
		Model:    0, Animation: codec.NoIndex, Particle: codec.NoIndex, Sound: codec.NoIndex,
	})
	idA, err := w.repl.RegisterObject(ha)
	require.NoError(t, err)

	w.deliver(t)

	// прикрепляем A к B
	w.serverScene.Poke(ha, func(s *scene.Sample) {
		s.Attached = true
		s.AttachedTo = hb
		s.Velocity = mgl32.Vec3{}
	})
	w.deliver(t)

	stA := w.client.State(idA.Index())
	require.True(t, stA.Attached)
	assert.Equal(t, idB.Index(), stA.AttachedTo.Index())
	assert.Equal(t, mgl32.Vec3{}, stA.Velocity, "прикрепление отменяет кинематику")

	// клиент копирует трансформ родителя
	w.client.Advance(0.05)
	chA, _ := w.client.Handle(idA.Index())
	assert.Equal(t, mgl32.Vec3{7, 7, 7}, w.clientScene.Position(chA))

	// кадр без смены родителя: флаг на проводе снят, состояние клиента
	// не деградирует
	w.deliver(t)
	assert.True(t, w.client.State(idA.Index()).Attached)

	// отцепляем и придаём скорость
	w.serverScene.Poke(ha, func(s *scene.Sample) {
		s.Attached = false
		s.Velocity = mgl32.Vec3{20, 0, 0}
		s.Position = mgl32.Vec3{7, 7, 7}
	})
	w.deliver(t)

	stA = w.client.State(idA.Index())
	assert.False(t, stA.Attached, "скорость отцепляет объект")
	assert.Equal(t, mgl32.Vec3{20, 0, 0}, stA.Velocity)
}

// Звук на уничтоженном объекте останавливается вместе с ним
func TestScenarioSoundOnDestroyedObject(t *testing.T) {
	w := newTestWorld(t)

	h := w.serverScene.Spawn(scene.Sample{
		Sound: 1, SoundRadius: 20,
		Model: codec.NoIndex, Animation: codec.NoIndex, Particle: codec.NoIndex,
	})
	id, err := w.repl.RegisterObject(h)
	require.NoError(t, err)

	w.deliver(t)

	ch, ok := w.client.Handle(id.Index())
	require.True(t, ok)
	players := w.clientScene.ActiveSounds(ch)
	require.Len(t, players, 1)
	assert.EqualValues(t, 1, players[0].Index)
	assert.EqualValues(t, 20, players[0].Radius)
	assert.InDelta(t, 3.0, float64(players[0].UnitSize), 1e-5) // 0.15 * 20

	// сервер уничтожает объект
	require.NoError(t, w.repl.UnregisterObject(h))
	w.serverScene.Destroy(h)
	w.deliver(t)

	assert.Zero(t, w.client.ObjectCount())
	assert.False(t, w.clientScene.Exists(ch))

	// следующий кадр идентификатор больше не упоминает
	snap := w.repl.BuildSnapshot()
	payload, _ := w.repl.EncodeFor(w.cursor, snap)
	pkt, err := codec.DecodeSnapshot(payload, w.repl.Config())
	require.NoError(t, err)
	assert.Empty(t, pkt.Deleted)
	assert.Empty(t, pkt.Records)
}

// Индекс анимации вне прекэша пропускается, остальные поля
// применяются, датаграмма не отбрасывается
func TestScenarioPrecacheMiss(t *testing.T) {
	w := newTestWorld(t)

	// подсовываем запись с анимацией 7 при шести прекэшированных
	st := codec.NewObjectState(5, false)
	st.Position = mgl32.Vec3{1, 2, 3}
	st.AnimationIndex = 7

	wtr := codec.NewSnapshotWriter(1)
	require.True(t, wtr.TryAdd(&st, nil, w.repl.Config(), 0))
	payload := wtr.Finish(nil)

	require.NoError(t, w.client.ApplySnapshot(payload))

	got := w.client.State(5)
	require.NotNil(t, got)
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, got.Position, "остальные поля применяются")
	assert.Equal(t, codec.NoIndex, got.AnimationIndex, "битое поле пропущено")
}

// Устаревшая датаграмма игнорируется, курсор не откатывается
func TestStaleDatagramIgnored(t *testing.T) {
	w := newTestWorld(t)

	h := w.serverScene.Spawn(scene.Sample{
		Position: mgl32.Vec3{1, 0, 0},
		Model:    codec.NoIndex, Animation: codec.NoIndex, Particle: codec.NoIndex, Sound: codec.NoIndex,
	})
	id, err := w.repl.RegisterObject(h)
	require.NoError(t, err)

	w.deliver(t)

	snapOld := w.repl.BuildSnapshot()
	oldPayload, _ := w.repl.EncodeFor(w.cursor, snapOld)

	w.serverScene.SetPosition(h, mgl32.Vec3{9, 0, 0})
	w.tick(t)
	frameAfter := w.client.LastFrame()

	// старый пакет пришёл с опозданием
	require.NoError(t, w.client.ApplySnapshot(oldPayload))
	assert.Equal(t, frameAfter, w.client.LastFrame())
	assert.Equal(t, mgl32.Vec3{9, 0, 0}, w.client.State(id.Index()).Position)
}

// Курсор сервера монотонен
func TestCursorMonotonicity(t *testing.T) {
	cursor := NewClientCursor(0)

	require.True(t, cursor.AcceptInput(&codec.InputPacket{Sequence: 5, AckFrame: 100}))
	assert.EqualValues(t, 100, cursor.LastAckedFrame)

	// устаревший порядковый номер отбрасывается целиком
	assert.False(t, cursor.AcceptInput(&codec.InputPacket{Sequence: 5, AckFrame: 120}))
	assert.EqualValues(t, 100, cursor.LastAckedFrame)

	// новый номер со старым подтверждением не откатывает курсор
	require.True(t, cursor.AcceptInput(&codec.InputPacket{Sequence: 6, AckFrame: 50}))
	assert.EqualValues(t, 100, cursor.LastAckedFrame)

	require.True(t, cursor.AcceptInput(&codec.InputPacket{Sequence: 7, AckFrame: 130}))
	assert.EqualValues(t, 130, cursor.LastAckedFrame)
}

// Собственный объект игрока не попадает в его дельты
func TestOwnObjectExcluded(t *testing.T) {
	w := newTestWorld(t)

	h := w.serverScene.Spawn(scene.Sample{
		Position: mgl32.Vec3{3, 3, 3},
		Model:    codec.NoIndex, Animation: codec.NoIndex, Particle: codec.NoIndex, Sound: codec.NoIndex,
	})
	id, err := w.repl.RegisterObject(h)
	require.NoError(t, err)

	w.cursor.InGameObjectID = id
	w.cursor.HasInGameObject = true

	w.deliver(t)
	assert.Zero(t, w.client.ObjectCount())
}

// Пропавший baseline вынуждает полную отправку, клиент не ломается
func TestBaselineGCFallback(t *testing.T) {
	w := newTestWorld(t)

	h := w.serverScene.Spawn(scene.Sample{
		Position: mgl32.Vec3{1, 1, 1},
		Model:    codec.NoIndex, Animation: codec.NoIndex, Particle: codec.NoIndex, Sound: codec.NoIndex,
	})
	id, err := w.repl.RegisterObject(h)
	require.NoError(t, err)

	w.deliver(t)

	// выбрасываем всё, включая подтверждённый кадр
	w.repl.Store().GC(uint32(w.cursor.LastAckedFrame) + 1)
	require.Nil(t, w.repl.Store().Find(uint32(w.cursor.LastAckedFrame)))

	w.serverScene.SetPosition(h, mgl32.Vec3{2, 2, 2})
	snap := w.repl.BuildSnapshot()
	payload, objects := w.repl.EncodeFor(w.cursor, snap)
	assert.EqualValues(t, 1, objects, "без baseline объект кодируется полностью")

	require.NoError(t, w.client.ApplySnapshot(payload))
	assert.Equal(t, mgl32.Vec3{2, 2, 2}, w.client.State(id.Index()).Position)
}
