package replica

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/annel0/netreplica/internal/codec"
)

// Поле зрения клиента: 90° по горизонтали, 70° по вертикали
const (
	halfHorizontalFOV = float32(math.Pi / 4)        // 45°
	halfVerticalFOV   = float32(35 * math.Pi / 180) // 35°
)

// Viewer — последняя позиция и ориентация клиента из его input-пакетов
type Viewer struct {
	Position    mgl32.Vec3
	Orientation mgl32.Vec3
}

// basis возвращает орты камеры из эйлеровой ориентации:
// рыскание вокруг Y, тангаж вокруг X, взгляд вдоль -Z
func (v *Viewer) basis() (forward, right, up mgl32.Vec3) {
	rot := mgl32.Rotate3DY(v.Orientation.Y()).Mul3(mgl32.Rotate3DX(v.Orientation.X()))
	forward = rot.Mul3x1(mgl32.Vec3{0, 0, -1})
	right = rot.Mul3x1(mgl32.Vec3{1, 0, 0})
	up = rot.Mul3x1(mgl32.Vec3{0, 1, 0})
	return
}

// Visible решает, передавать ли объект клиенту.
//
// Объект со звуком передаётся, если клиент в радиусе слышимости
// (позиционному аудио нужна текущая позиция); 2D-звук радиуса не имеет
// и слышен отовсюду. Иначе ограничивающая сфера (позиция, ViewRadius)
// проверяется против фрустума 90°×70°; для ViewRadius ≤ 1 достаточно
// точечного теста.
func Visible(obj *codec.ObjectState, viewer *Viewer) bool {
	if obj.SoundIndex != codec.NoIndex {
		if obj.SoundIndex < codec.NoIndex {
			return true // 2D-звук
		}
		if obj.Position.Sub(viewer.Position).Len() <= float32(obj.SoundRadius) {
			return true
		}
	}

	forward, right, up := viewer.basis()
	rel := obj.Position.Sub(viewer.Position)

	d := rel.Dot(forward)
	if d <= 0 {
		return false // за спиной
	}

	hAngle := float32(math.Abs(float64(math32Atan2(rel.Dot(right), d))))
	vAngle := float32(math.Abs(float64(math32Atan2(rel.Dot(up), d))))

	if obj.ViewRadius <= 1 {
		return hAngle <= halfHorizontalFOV && vAngle <= halfVerticalFOV
	}

	dist := rel.Len()
	if dist <= obj.ViewRadius {
		return true // наблюдатель внутри сферы
	}
	angular := float32(math.Asin(float64(clamp01(obj.ViewRadius / dist))))
	return hAngle-angular <= halfHorizontalFOV && vAngle-angular <= halfVerticalFOV
}

func math32Atan2(y, x float32) float32 {
	return float32(math.Atan2(float64(y), float64(x)))
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
