package replica

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/annel0/netreplica/internal/codec"
	"github.com/annel0/netreplica/internal/logging"
	"github.com/annel0/netreplica/internal/scene"
)

// ClientReplica восстанавливает мир из датаграмм сервера: создаёт,
// обновляет и удаляет объекты сцены, ведёт dead reckoning и сглаживание.
type ClientReplica struct {
	sc    scene.Adapter
	slots *SlotTable

	states    map[uint16]*codec.ObjectState
	smoothers map[uint16]*Smoother

	cfg    *codec.WireConfig
	tables *codec.PrecacheTables

	lastFrame int64 // -1 до первого применённого кадра

	window float32 // окно сглаживания, сек
	eps    float32 // порог расхождения для запуска сглаживания

	logger *logging.Logger
}

// NewClientReplica создаёт восстановитель поверх сцены
func NewClientReplica(sc scene.Adapter, base *codec.WireConfig, windowMs int, eps float64) *ClientReplica {
	return &ClientReplica{
		sc:        sc,
		slots:     NewSlotTable(),
		states:    make(map[uint16]*codec.ObjectState),
		smoothers: make(map[uint16]*Smoother),
		cfg:       base,
		lastFrame: -1,
		window:    float32(windowMs) / 1000,
		eps:       float32(eps),
		logger:    logging.GetReplicaLogger(),
	}
}

// LastFrame возвращает последний применённый кадр (-1 до бутстрапа).
// Это значение клиент отправляет в поле подтверждения input-пакетов.
func (c *ClientReplica) LastFrame() int64 { return c.lastFrame }

// Tables возвращает согласованные списки прекэша
func (c *ClientReplica) Tables() *codec.PrecacheTables { return c.tables }

// Config возвращает конфигурацию провода после бутстрапа
func (c *ClientReplica) Config() *codec.WireConfig { return c.cfg }

// ObjectCount возвращает число живых реплик
func (c *ClientReplica) ObjectCount() int { return len(c.states) }

// State возвращает последнее применённое состояние объекта
func (c *ClientReplica) State(idx uint16) *codec.ObjectState { return c.states[idx] }

// Handle возвращает дескриптор сцены для сетевого идентификатора
func (c *ClientReplica) Handle(idx uint16) (scene.Handle, bool) {
	return c.slots.GetAt(codec.NetworkID(idx))
}

// ApplyInit применяет init-пакет рукопожатия: прекэш, конфигурация
// провода и начальные объекты
func (c *ClientReplica) ApplyInit(pkt *codec.InitPacket, cfg *codec.WireConfig) error {
	if err := c.sc.Precache(pkt.Tables); err != nil {
		return fmt.Errorf("прекэш ресурсов: %w", err)
	}
	c.cfg = cfg
	c.tables = pkt.Tables

	for _, rec := range pkt.Records {
		c.applyRecord(rec)
	}
	c.lastFrame = int64(pkt.Frame)
	c.sc.SyncViewports()

	c.logger.Info("Бутстрап применён: кадр %d, объектов %d", pkt.Frame, len(pkt.Records))
	return nil
}

// ApplySnapshot применяет датаграмму снапшота. Оборванная датаграмма
// отбрасывается целиком (ошибка возвращается, курсор не двигается);
// датаграммы со старым номером кадра молча игнорируются.
func (c *ClientReplica) ApplySnapshot(data []byte) error {
	pkt, err := codec.DecodeSnapshot(data, c.cfg)
	if err != nil {
		return err
	}
	if int64(pkt.Frame) <= c.lastFrame {
		return nil
	}

	for _, rec := range pkt.Records {
		c.applyRecord(rec)
	}

	for _, id := range pkt.Deleted {
		c.destroyObject(id)
	}

	c.lastFrame = int64(pkt.Frame)
	c.sc.SyncViewports()
	return nil
}

// applyRecord применяет одну запись, поля в строгом порядке сериализации
func (c *ClientReplica) applyRecord(rec *codec.ObjectRecord) {
	idx := rec.Index()

	st, known := c.states[idx]
	var h scene.Handle
	created := false
	if !known {
		// Запись для незанятого слота создаёт свежую реплику
		h = c.sc.Instantiate(rec.Is2D())
		c.slots.InsertAt(codec.NetworkID(idx), h)

		ns := codec.NewObjectState(codec.NetworkID(idx), rec.Is2D())
		ns.Compressed = rec.Raw.Has(codec.FlagCompressed)
		st = &ns
		c.states[idx] = st
		c.smoothers[idx] = NewSmoother(c.window)
		created = true
	} else {
		h, _ = c.slots.GetAt(codec.NetworkID(idx))
	}
	sm := c.smoothers[idx]

	if rec.Raw.Has(codec.FlagAttached) {
		st.Attached = true
		st.AttachedTo = rec.AttachTo
		st.Velocity = mgl32.Vec3{}
		c.sc.SetVelocity(h, mgl32.Vec3{})
		sm.Snap()
	}

	if rec.Mask.Has(codec.FieldVelocity) {
		// Скорость на прикреплённом объекте сначала отцепляет его
		st.Attached = false
		st.Velocity = rec.Velocity
		c.sc.SetVelocity(h, rec.Velocity)
	}

	if rec.Mask.Has(codec.FieldPosition) && !st.Attached {
		st.Position = rec.Position
		cur := c.sc.Position(h)
		if !created && rec.Position.Sub(cur).Len() > c.eps {
			sm.StartPosition(cur, rec.Position)
		} else {
			c.sc.SetPosition(h, rec.Position)
		}
	}

	if rec.Mask.Has(codec.FieldOrientation) && !st.Attached {
		st.Orientation = rec.Orientation
		cur := c.sc.Orientation(h)
		if !created && rec.Orientation.Sub(cur).Len() > c.eps {
			sm.StartOrientation(cur, rec.Orientation)
		} else {
			c.sc.SetOrientation(h, rec.Orientation)
		}
	}

	if rec.Mask.Has(codec.FieldScale) && !st.Attached {
		st.Scale = rec.Scale
		cur := c.sc.Scale(h)
		if !created && rec.Scale.Sub(cur).Len() > c.eps {
			sm.StartScale(cur, rec.Scale)
		} else {
			c.sc.SetScale(h, rec.Scale)
		}
	}

	if rec.Mask.Has(codec.FieldSound) {
		c.applySound(h, st, rec)
	}

	if rec.Mask.Has(codec.FieldModel) {
		if c.indexValid(rec.ModelIndex, len(c.modelNames())) {
			st.ModelIndex = rec.ModelIndex
			c.sc.AttachModel(h, rec.ModelIndex)
		} else {
			c.logger.Warn("Индекс модели %d вне прекэша, поле пропущено", rec.ModelIndex)
		}
	}

	if rec.Mask.Has(codec.FieldAnimation) {
		if c.indexValid(rec.AnimationIndex, len(c.animationNames())) {
			st.AnimationIndex = rec.AnimationIndex
			c.sc.AttachAnimation(h, rec.AnimationIndex)
		} else {
			c.logger.Warn("Индекс анимации %d вне прекэша, поле пропущено", rec.AnimationIndex)
		}
	}

	if rec.Mask.Has(codec.FieldParticle) {
		if c.indexValid(rec.ParticleIndex, len(c.particleNames())) {
			st.ParticleIndex = rec.ParticleIndex
			c.sc.AttachParticle(h, rec.ParticleIndex)
		} else {
			c.logger.Warn("Индекс частиц %d вне прекэша, поле пропущено", rec.ParticleIndex)
		}
	}

	if rec.Raw.Has(codec.FlagHasBlob) {
		st.Blob = rec.Blob
	}
}

// applySound реализует знаковое кодирование звука:
// -1 — остановить всё; < -1 — 2D-звук с индексом -(v+2); иначе 3D-звук
// с радиусом
func (c *ClientReplica) applySound(h scene.Handle, st *codec.ObjectState, rec *codec.ObjectRecord) {
	st.SoundIndex = rec.SoundIndex
	st.SoundRadius = rec.SoundRadius

	switch {
	case rec.SoundIndex == codec.NoIndex:
		c.sc.StopSounds(h)
	case rec.SoundIndex < codec.NoIndex:
		idx := -(rec.SoundIndex + 2)
		if c.indexValid(idx, c.soundCount()) {
			c.sc.PlaySound2D(h, idx)
		} else {
			c.logger.Warn("Индекс 2D-звука %d вне прекэша, поле пропущено", idx)
		}
	default:
		if c.indexValid(rec.SoundIndex, c.soundCount()) {
			c.sc.PlaySound3D(h, rec.SoundIndex, rec.SoundRadius)
		} else {
			c.logger.Warn("Индекс 3D-звука %d вне прекэша, поле пропущено", rec.SoundIndex)
		}
	}
}

func (c *ClientReplica) destroyObject(id codec.NetworkID) {
	idx := id.Index()
	if h, ok := c.slots.GetAt(id); ok {
		c.sc.StopSounds(h)
		c.sc.Destroy(h)
	}
	c.slots.RemoveAt(id)
	delete(c.states, idx)
	delete(c.smoothers, idx)
}

// Advance продвигает локальное время клиента: dead reckoning,
// сглаживание и копирование трансформа у прикреплённых объектов.
// Вызывается на каждом кадре рендера.
func (c *ClientReplica) Advance(dt float32) {
	for idx, st := range c.states {
		h, ok := c.slots.GetAt(codec.NetworkID(idx))
		if !ok {
			continue
		}

		if st.Attached {
			// Родитель задаёт трансформ; если он исчез, просто перестаём
			// копировать
			if ph, found := c.slots.GetAt(st.AttachedTo); found {
				c.sc.SetPosition(h, c.sc.Position(ph))
				c.sc.SetOrientation(h, c.sc.Orientation(ph))
			}
			continue
		}

		if st.Velocity != (mgl32.Vec3{}) {
			st.Position = st.Position.Add(st.Velocity.Mul(dt))
		}

		sm := c.smoothers[idx]
		if pos, active := sm.AdvancePosition(dt, st.Velocity); active {
			c.sc.SetPosition(h, pos)
		} else if st.Velocity != (mgl32.Vec3{}) {
			c.sc.SetPosition(h, st.Position)
		}
		if orient, active := sm.AdvanceOrientation(dt); active {
			c.sc.SetOrientation(h, orient)
		}
		if scale, active := sm.AdvanceScale(dt); active {
			c.sc.SetScale(h, scale)
		}
	}
}

func (c *ClientReplica) indexValid(idx int16, count int) bool {
	return idx >= 0 && int(idx) < count
}

func (c *ClientReplica) soundCount() int {
	if c.tables == nil {
		return 0
	}
	return len(c.tables.Sounds)
}

func (c *ClientReplica) modelNames() []string {
	if c.tables == nil {
		return nil
	}
	return c.tables.Models
}

func (c *ClientReplica) animationNames() []string {
	if c.tables == nil {
		return nil
	}
	return c.tables.Animations
}

func (c *ClientReplica) particleNames() []string {
	if c.tables == nil {
		return nil
	}
	return c.tables.Particles
}
