package replica

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// vecTween — активная интерполяция одного векторного свойства.
// Таймер окна ведёт gween; концы позиционной интерполяции продолжают
// двигаться со скоростью объекта, чтобы сглаживание не замораживало
// dead reckoning.
type vecTween struct {
	tw       *gween.Tween
	from, to mgl32.Vec3
	angular  bool
}

func (t *vecTween) advance(dt float32, drift mgl32.Vec3) (mgl32.Vec3, bool) {
	t.from = t.from.Add(drift.Mul(dt))
	t.to = t.to.Add(drift.Mul(dt))

	k, done := t.tw.Update(dt)
	// сумма шагов dt во float32 может не дотянуть до конца окна на
	// долю ulp; такой остаток считается завершённым окном
	if !done && k >= 1-1e-5 {
		k, done = 1, true
	}
	var v mgl32.Vec3
	if t.angular {
		v = mgl32.Vec3{
			lerpAngle(t.from.X(), t.to.X(), k),
			lerpAngle(t.from.Y(), t.to.Y(), k),
			lerpAngle(t.from.Z(), t.to.Z(), k),
		}
	} else {
		v = t.from.Add(t.to.Sub(t.from).Mul(k))
	}
	return v, done
}

// lerpAngle интерполирует угол по кратчайшей дуге, разница свёрнута в [-π, π]
func lerpAngle(from, to, k float32) float32 {
	d := wrapAngle(to - from)
	return from + d*k
}

func wrapAngle(a float32) float32 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a < -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

// Smoother сглаживает авторитетные правки одного объекта за фиксированное
// окно. Прикреплённые объекты сглаживание обходят — их трансформ
// копируется у родителя.
type Smoother struct {
	window float32 // секунды

	position    *vecTween
	orientation *vecTween
	scale       *vecTween
}

// NewSmoother создаёт сглаживатель с окном в секундах
func NewSmoother(window float32) *Smoother {
	return &Smoother{window: window}
}

// StartPosition начинает позиционную интерполяцию from -> to
func (s *Smoother) StartPosition(from, to mgl32.Vec3) {
	s.position = &vecTween{tw: gween.New(0, 1, s.window, ease.Linear), from: from, to: to}
}

// StartOrientation начинает угловую интерполяцию from -> to
func (s *Smoother) StartOrientation(from, to mgl32.Vec3) {
	s.orientation = &vecTween{tw: gween.New(0, 1, s.window, ease.Linear), from: from, to: to, angular: true}
}

// StartScale начинает линейную интерполяцию масштаба from -> to
func (s *Smoother) StartScale(from, to mgl32.Vec3) {
	s.scale = &vecTween{tw: gween.New(0, 1, s.window, ease.Linear), from: from, to: to}
}

// Snap отменяет все активные интерполяции (телепорт/спавн)
func (s *Smoother) Snap() {
	s.position, s.orientation, s.scale = nil, nil, nil
}

// Idle сообщает, нет ли активных интерполяций
func (s *Smoother) Idle() bool {
	return s.position == nil && s.orientation == nil && s.scale == nil
}

// AdvancePosition продвигает позиционную интерполяцию; оба конца дрейфуют
// со скоростью velocity
func (s *Smoother) AdvancePosition(dt float32, velocity mgl32.Vec3) (mgl32.Vec3, bool) {
	if s.position == nil {
		return mgl32.Vec3{}, false
	}
	v, done := s.position.advance(dt, velocity)
	if done {
		s.position = nil
	}
	return v, true
}

// AdvanceOrientation продвигает угловую интерполяцию
func (s *Smoother) AdvanceOrientation(dt float32) (mgl32.Vec3, bool) {
	if s.orientation == nil {
		return mgl32.Vec3{}, false
	}
	v, done := s.orientation.advance(dt, mgl32.Vec3{})
	if done {
		s.orientation = nil
	}
	return v, true
}

// AdvanceScale продвигает интерполяцию масштаба
func (s *Smoother) AdvanceScale(dt float32) (mgl32.Vec3, bool) {
	if s.scale == nil {
		return mgl32.Vec3{}, false
	}
	v, done := s.scale.advance(dt, mgl32.Vec3{})
	if done {
		s.scale = nil
	}
	return v, true
}
