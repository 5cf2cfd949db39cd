package replica

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/annel0/netreplica/internal/codec"
	"github.com/annel0/netreplica/internal/logging"
	"github.com/annel0/netreplica/internal/scene"
)

// ServerReplicator строит снапшоты со сцены и кодирует поклиентные
// дельты. Вся мутация происходит на потоке тика.
type ServerReplicator struct {
	sc    scene.Adapter
	slots *SlotTable
	store *Store
	cfg   *codec.WireConfig

	frame          uint32
	latest         *Snapshot
	pendingDeleted []codec.NetworkID

	logger *logging.Logger
}

// NewServerReplicator создаёт репликатор поверх сцены
func NewServerReplicator(sc scene.Adapter, cfg *codec.WireConfig) *ServerReplicator {
	return &ServerReplicator{
		sc:     sc,
		slots:  NewSlotTable(),
		store:  NewStore(),
		cfg:    cfg,
		logger: logging.GetReplicaLogger(),
	}
}

// Slots возвращает таблицу слотов
func (r *ServerReplicator) Slots() *SlotTable { return r.slots }

// Store возвращает хранилище снапшотов
func (r *ServerReplicator) Store() *Store { return r.store }

// Config возвращает конфигурацию провода
func (r *ServerReplicator) Config() *codec.WireConfig { return r.cfg }

// Frame возвращает номер последнего построенного кадра
func (r *ServerReplicator) Frame() uint32 { return r.frame }

// Latest возвращает последний построенный снапшот
func (r *ServerReplicator) Latest() *Snapshot { return r.latest }

// RegisterObject включает объект сцены в репликацию и назначает ему
// сетевой идентификатор. Переполнение таблицы фатально для сессии.
func (r *ServerReplicator) RegisterObject(h scene.Handle) (codec.NetworkID, error) {
	id, err := r.slots.Insert(h)
	if err != nil {
		return 0, fmt.Errorf("регистрация объекта %d: %w", h, err)
	}
	r.logger.Debug("Объект %d получил идентификатор %d", h, id.Index())
	return id, nil
}

// UnregisterObject исключает объект из репликации; удаление попадёт в
// список удалений ближайшего кадра
func (r *ServerReplicator) UnregisterObject(h scene.Handle) error {
	id, ok := r.slots.Find(h)
	if !ok {
		return ErrNotFound
	}
	r.slots.RemoveAt(id)
	r.pendingDeleted = append(r.pendingDeleted, id)
	r.logger.Debug("Объект %d (id %d) снят с репликации", h, id.Index())
	return nil
}

// BuildSnapshot сэмплирует сцену и публикует снапшот нового кадра
func (r *ServerReplicator) BuildSnapshot() *Snapshot {
	r.frame++

	snap := &Snapshot{Frame: r.frame}

	r.slots.ForEach(func(id codec.NetworkID, h scene.Handle) {
		sample, ok := r.sc.Sample(h)
		if !ok {
			// Сцена удалила объект мимо UnregisterObject
			r.slots.RemoveAt(id)
			r.pendingDeleted = append(r.pendingDeleted, id)
			return
		}

		st := codec.NewObjectState(id, sample.Is2D)
		st.Compressed = sample.Compressed
		st.Position = sample.Position
		st.Orientation = sample.Orientation
		st.Scale = sample.Scale
		st.Velocity = sample.Velocity
		st.ModelIndex = sample.Model
		st.AnimationIndex = sample.Animation
		st.ParticleIndex = sample.Particle
		st.SoundIndex = sample.Sound
		st.SoundRadius = sample.SoundRadius
		st.ViewRadius = sample.ViewRadius
		st.Blob = sample.Blob

		if sample.Attached {
			if target, found := r.slots.Find(sample.AttachedTo); found {
				st.Attached = true
				st.AttachedTo = target
				// Прикрепление и кинематика взаимоисключающие
				st.Velocity = mgl32.Vec3{}
			}
		}

		snap.Objects = append(snap.Objects, st)
	})

	snap.Deleted = r.pendingDeleted
	r.pendingDeleted = nil

	r.store.Append(snap)
	r.latest = snap
	return snap
}

// maxDeletions — сколько идентификаторов удаления помещается в датаграмму
// с минимальным заголовком
const maxDeletions = (codec.MaxDatagramSize - 5 - 2) / 2

// EncodeFor кодирует датаграмму снапшота snap для клиента cursor и
// возвращает её вместе с числом записанных объектов.
// Baseline — последний подтверждённый клиентом снапшот; если он уже
// собран сборщиком, кодируется полный снапшот без baseline.
func (r *ServerReplicator) EncodeFor(cursor *ClientCursor, snap *Snapshot) ([]byte, int) {
	var baseline *Snapshot
	if cursor.LastAckedFrame >= 0 {
		baseline = r.store.Find(uint32(cursor.LastAckedFrame))
		if baseline == nil {
			r.logger.Debug("Baseline кадра %d для игрока %d собран GC, полная отправка",
				cursor.LastAckedFrame, cursor.PlayerIndex)
		}
	}

	deleted := r.store.DeletedSince(cursor.LastAckedFrame, snap.Frame)
	if len(deleted) > maxDeletions {
		r.logger.Warn("Список удалений обрезан: %d > %d", len(deleted), maxDeletions)
		deleted = deleted[:maxDeletions]
	}
	reserve := codec.DeletionReserve(len(deleted))

	w := codec.NewSnapshotWriter(snap.Frame)
	for i := range snap.Objects {
		obj := &snap.Objects[i]

		if cursor.HasInGameObject && obj.ID.Index() == cursor.InGameObjectID.Index() {
			continue // собственный объект игрока не отправляется ему
		}

		// Отсечение выключено, пока клиент не подтвердил первый кадр
		if cursor.LastAckedFrame >= 0 && !Visible(obj, &cursor.Viewer) {
			continue
		}

		var objBase *codec.ObjectState
		if baseline != nil {
			objBase = baseline.Get(obj.ID.Index())
		}

		if !w.TryAdd(obj, objBase, r.cfg, reserve) {
			// Датаграмма полна; пропущенные объекты догонят на следующих
			// тиках, пока клиент не подтвердит новый baseline
			break
		}
	}

	return w.Finish(deleted), int(w.Count())
}

// GC выбрасывает снапшоты старше минимального подтверждённого кадра
func (r *ServerReplicator) GC(minAcked int64) {
	if minAcked < 0 {
		return
	}
	r.store.GC(uint32(minAcked))
}

// InitObjects возвращает полные состояния последнего кадра для
// init-пакета, исключая собственный объект игрока
func (r *ServerReplicator) InitObjects(cursor *ClientCursor) []*codec.ObjectState {
	if r.latest == nil {
		return nil
	}
	out := make([]*codec.ObjectState, 0, len(r.latest.Objects))
	for i := range r.latest.Objects {
		obj := &r.latest.Objects[i]
		if cursor.HasInGameObject && obj.ID.Index() == cursor.InGameObjectID.Index() {
			continue
		}
		out = append(out, obj)
	}
	return out
}
