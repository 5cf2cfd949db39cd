package codec

import (
	"bytes"

	"github.com/go-gl/mathgl/mgl32"
	crunch "github.com/superwhiskers/crunch/v3"
)

// identityScale — нейтральное значение масштаба
var identityScale = mgl32.Vec3{1, 1, 1}

// zeroVec — нейтральное значение векторных полей
var zeroVec = mgl32.Vec3{}

// ObjectState — состояние реплицируемого объекта в одном кадре.
// Сервер снимает его со сцены, клиент восстанавливает из дельт.
type ObjectState struct {
	ID NetworkID // индекс слота, без флагов

	Is2D       bool // липкий флаг, задаётся при создании
	Compressed bool // ориентация и скорость ходят через кодовую книгу
	Attached   bool // трансформ берётся у родителя, трансформы не передаются
	AttachedTo NetworkID

	Position    mgl32.Vec3
	Orientation mgl32.Vec3 // Эйлер; у 2D угол поворота в Y
	Scale       mgl32.Vec3
	Velocity    mgl32.Vec3

	ModelIndex     int16 // -1 — не задан
	AnimationIndex int16
	ParticleIndex  int16

	// SoundIndex: -1 — нет звука; >= 0 — 3D-звук с радиусом;
	// < -1 — 2D-звук, фактический индекс -(SoundIndex+2)
	SoundIndex  int16
	SoundRadius uint8

	// ViewRadius используется только сервером при отсечении, на провод не идёт
	ViewRadius float32

	Blob []byte // непрозрачная нагрузка, не длиннее 255 байт
}

// NewObjectState возвращает состояние с нейтральными значениями полей
func NewObjectState(id NetworkID, is2D bool) ObjectState {
	return ObjectState{
		ID:             id & IndexMask,
		Is2D:           is2D,
		Scale:          identityScale,
		ModelIndex:     NoIndex,
		AnimationIndex: NoIndex,
		ParticleIndex:  NoIndex,
		SoundIndex:     NoIndex,
	}
}

// WireConfig — сессионные параметры кодирования: режимы векторов
// (Full или Half; Compressed включается пообъектным флагом) и ширины
// индексов прекэша.
type WireConfig struct {
	Position    VectorMode
	Orientation VectorMode
	Scale       VectorMode
	Velocity    VectorMode
	Widths      IndexWidths
}

// DefaultWireConfig возвращает конфигурацию с полными float32 и
// однобайтовыми индексами
func DefaultWireConfig() *WireConfig {
	return &WireConfig{
		Position:    VectorFull,
		Orientation: VectorFull,
		Scale:       VectorFull,
		Velocity:    VectorFull,
		Widths:      IndexWidths{Model: 1, Animation: 1, Particle: 1},
	}
}

// orientVelMode возвращает фактический режим для ориентации/скорости объекта
func orientVelMode(configured VectorMode, s *ObjectState) VectorMode {
	if s.Compressed && !s.Is2D {
		return VectorCompressed
	}
	return configured
}

// EncodeObject сериализует дельту объекта против baseline (nil — первая
// передача, сравнение с нейтральными значениями). Возвращает false, если
// запись полностью подавлена (ноль байт).
//
// Прикреплённые объекты пишут заголовок всегда: либо 5 байт с новым
// идентификатором родителя, либо 3 байта со снятым флагом FlagAttached,
// чтобы клиент не перечитывал устаревший идентификатор.
func EncodeObject(b *crunch.Buffer, cur *ObjectState, baseline *ObjectState, cfg *WireConfig) bool {
	firstSend := baseline == nil

	velBase, posBase, orientBase := zeroVec, zeroVec, zeroVec
	scaleBase := identityScale
	soundBase, modelBase, animBase, particleBase := NoIndex, NoIndex, NoIndex, NoIndex
	radiusBase := uint8(0)
	var blobBase []byte
	if !firstSend {
		velBase, posBase, orientBase, scaleBase = baseline.Velocity, baseline.Position, baseline.Orientation, baseline.Scale
		soundBase, modelBase, animBase, particleBase = baseline.SoundIndex, baseline.ModelIndex, baseline.AnimationIndex, baseline.ParticleIndex
		radiusBase = baseline.SoundRadius
		blobBase = baseline.Blob
	}

	velChanged := cur.Velocity != velBase
	posChanged := cur.Position != posBase
	orientChanged := cur.Orientation != orientBase
	scaleChanged := cur.Scale != scaleBase
	soundChanged := cur.SoundIndex != soundBase ||
		(cur.SoundIndex > NoIndex && cur.SoundRadius != radiusBase)
	modelChanged := cur.ModelIndex != modelBase
	animChanged := cur.AnimationIndex != animBase
	particleChanged := cur.ParticleIndex != particleBase
	blobChanged := !bytes.Equal(cur.Blob, blobBase)

	attachChanged := false
	if cur.Attached {
		attachChanged = firstSend || !baseline.Attached || baseline.AttachedTo != cur.AttachedTo
	}

	var mask FieldMask
	if !cur.Attached {
		if velChanged {
			mask |= FieldVelocity
		}
		posSend := posChanged
		if velChanged {
			// Скорость идёт вместе с позицией для коррекции дрейфа
			posSend = true
		} else if !firstSend && cur.Velocity != zeroVec {
			// Позицию экстраполирует dead reckoning на клиенте
			posSend = false
		}
		if posSend {
			mask |= FieldPosition
		}
		if orientChanged {
			mask |= FieldOrientation
		}
		if scaleChanged {
			mask |= FieldScale
		}
	}
	if soundChanged {
		mask |= FieldSound
	}
	if modelChanged {
		mask |= FieldModel
	}
	if animChanged {
		mask |= FieldAnimation
	}
	if particleChanged {
		mask |= FieldParticle
	}

	// Полностью неизменившийся объект не пишет ни байта, кроме двух случаев:
	// первая передача обязана объявить объект хотя бы заголовком, а
	// прикреплённый объект всегда пишет заголовок (иначе клиенту не с чего
	// снять флаг FlagAttached)
	if mask == 0 && !blobChanged && !cur.Attached && !firstSend {
		return false
	}

	wid := cur.ID & IndexMask
	if cur.Is2D {
		wid = wid.With(FlagIs2D)
	}
	if cur.Compressed && !cur.Is2D {
		wid = wid.With(FlagCompressed)
	}
	if attachChanged {
		wid = wid.With(FlagAttached)
	}
	if blobChanged {
		wid = wid.With(FlagHasBlob)
	}

	growWriteU16(b, uint16(wid))
	growWriteByte(b, byte(mask))

	if attachChanged {
		growWriteU16(b, uint16(cur.AttachedTo&IndexMask))
	}

	// Поля строго в порядке сериализации
	if mask.Has(FieldVelocity) {
		writeVector(b, cur.Velocity, orientVelMode(cfg.Velocity, cur), cur.Is2D)
	}
	if mask.Has(FieldPosition) {
		writeVector(b, cur.Position, cfg.Position, cur.Is2D)
	}
	if mask.Has(FieldOrientation) {
		writeVector(b, cur.Orientation, orientVelMode(cfg.Orientation, cur), cur.Is2D)
	}
	if mask.Has(FieldScale) {
		writeVector(b, cur.Scale, cfg.Scale, cur.Is2D)
	}
	if mask.Has(FieldSound) {
		growWriteU16(b, uint16(cur.SoundIndex))
		if cur.SoundIndex > NoIndex {
			growWriteByte(b, cur.SoundRadius)
		}
	}
	if mask.Has(FieldModel) {
		writeIndex(b, cur.ModelIndex, cfg.Widths.Model)
	}
	if mask.Has(FieldAnimation) {
		writeIndex(b, cur.AnimationIndex, cfg.Widths.Animation)
	}
	if mask.Has(FieldParticle) {
		writeIndex(b, cur.ParticleIndex, cfg.Widths.Particle)
	}
	if blobChanged {
		growWriteByte(b, byte(len(cur.Blob)))
		growWriteBytes(b, cur.Blob)
	}

	return true
}

// ObjectRecord — разобранная запись одного объекта из датаграммы
type ObjectRecord struct {
	Raw  NetworkID // с inline-флагами
	Mask FieldMask

	AttachTo NetworkID // валидно при Raw.Has(FlagAttached)

	Velocity    mgl32.Vec3
	Position    mgl32.Vec3
	Orientation mgl32.Vec3
	Scale       mgl32.Vec3

	SoundIndex  int16
	SoundRadius uint8

	ModelIndex     int16
	AnimationIndex int16
	ParticleIndex  int16

	Blob []byte
}

// Index возвращает индекс слота записи
func (r *ObjectRecord) Index() uint16 { return r.Raw.Index() }

// Is2D сообщает размерность объекта
func (r *ObjectRecord) Is2D() bool { return r.Raw.Has(FlagIs2D) }

// DecodeObject разбирает одну запись объекта. Любая нехватка байт
// возвращает ErrShortBuffer — датаграмма отбрасывается вызывающим.
func DecodeObject(b *crunch.Buffer, cfg *WireConfig) (*ObjectRecord, error) {
	raw, err := readU16(b)
	if err != nil {
		return nil, err
	}
	maskByte, err := readByte(b)
	if err != nil {
		return nil, err
	}

	rec := &ObjectRecord{
		Raw:            NetworkID(raw),
		Mask:           FieldMask(maskByte),
		SoundIndex:     NoIndex,
		ModelIndex:     NoIndex,
		AnimationIndex: NoIndex,
		ParticleIndex:  NoIndex,
	}
	is2D := rec.Is2D()
	compressed := rec.Raw.Has(FlagCompressed) && !is2D

	if rec.Raw.Has(FlagAttached) {
		target, err := readU16(b)
		if err != nil {
			return nil, err
		}
		rec.AttachTo = NetworkID(target) & IndexMask
	}

	ovMode := func(configured VectorMode) VectorMode {
		if compressed {
			return VectorCompressed
		}
		return configured
	}

	if rec.Mask.Has(FieldVelocity) {
		if rec.Velocity, err = readVector(b, ovMode(cfg.Velocity), is2D); err != nil {
			return nil, err
		}
	}
	if rec.Mask.Has(FieldPosition) {
		if rec.Position, err = readVector(b, cfg.Position, is2D); err != nil {
			return nil, err
		}
	}
	if rec.Mask.Has(FieldOrientation) {
		if rec.Orientation, err = readVector(b, ovMode(cfg.Orientation), is2D); err != nil {
			return nil, err
		}
	}
	if rec.Mask.Has(FieldScale) {
		if rec.Scale, err = readVector(b, cfg.Scale, is2D); err != nil {
			return nil, err
		}
	}
	if rec.Mask.Has(FieldSound) {
		v, err := readU16(b)
		if err != nil {
			return nil, err
		}
		rec.SoundIndex = int16(v)
		if rec.SoundIndex > NoIndex {
			if rec.SoundRadius, err = readByte(b); err != nil {
				return nil, err
			}
		}
	}
	if rec.Mask.Has(FieldModel) {
		if rec.ModelIndex, err = readIndex(b, cfg.Widths.Model); err != nil {
			return nil, err
		}
	}
	if rec.Mask.Has(FieldAnimation) {
		if rec.AnimationIndex, err = readIndex(b, cfg.Widths.Animation); err != nil {
			return nil, err
		}
	}
	if rec.Mask.Has(FieldParticle) {
		if rec.ParticleIndex, err = readIndex(b, cfg.Widths.Particle); err != nil {
			return nil, err
		}
	}
	if rec.Raw.Has(FlagHasBlob) {
		n, err := readByte(b)
		if err != nil {
			return nil, err
		}
		if rec.Blob, err = readBytes(b, int64(n)); err != nil {
			return nil, err
		}
	}

	return rec, nil
}
