package replica

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"

	"github.com/annel0/netreplica/internal/codec"
)

func lookingForward() *Viewer {
	// смотрим вдоль -Z из начала координат
	return &Viewer{}
}

func objAt(pos mgl32.Vec3, radius float32) *codec.ObjectState {
	st := codec.NewObjectState(1, false)
	st.Position = pos
	st.ViewRadius = radius
	return &st
}

func TestVisibleInFrontOfViewer(t *testing.T) {
	assert.True(t, Visible(objAt(mgl32.Vec3{0, 0, -10}, 0.5), lookingForward()))
}

func TestInvisibleBehindViewer(t *testing.T) {
	assert.False(t, Visible(objAt(mgl32.Vec3{0, 0, 10}, 0.5), lookingForward()))
}

// Объект вне фрустума 90×70 и вне радиуса звука не передаётся
func TestFrustumEdges(t *testing.T) {
	v := lookingForward()

	// 40° от оси по горизонтали — внутри половинных 45°
	x := float32(10 * math.Tan(40*math.Pi/180))
	assert.True(t, Visible(objAt(mgl32.Vec3{x, 0, -10}, 0.5), v))

	// 50° — снаружи
	x = float32(10 * math.Tan(50*math.Pi/180))
	assert.False(t, Visible(objAt(mgl32.Vec3{x, 0, -10}, 0.5), v))

	// вертикаль уже: половина 35°; 30° видно, 40° — нет
	y := float32(10 * math.Tan(30*math.Pi/180))
	assert.True(t, Visible(objAt(mgl32.Vec3{0, y, -10}, 0.5), v))
	y = float32(10 * math.Tan(40*math.Pi/180))
	assert.False(t, Visible(objAt(mgl32.Vec3{0, y, -10}, 0.5), v))
}

// Крупная сфера цепляет фрустум краем
func TestSphereOverlapsFrustum(t *testing.T) {
	v := lookingForward()

	// центр на 50° — точечный тест провалился бы, но угловой радиус
	// сферы достаёт до границы
	x := float32(10 * math.Tan(50*math.Pi/180))
	big := objAt(mgl32.Vec3{x, 0, -10}, 4)
	assert.True(t, Visible(big, v))

	small := objAt(mgl32.Vec3{x, 0, -10}, 0.5)
	assert.False(t, Visible(small, v))
}

// Звук в радиусе слышимости пересиливает фрустум
func TestSoundRadiusOverridesFrustum(t *testing.T) {
	v := lookingForward()

	st := objAt(mgl32.Vec3{0, 0, 15}, 0.5) // за спиной
	st.SoundIndex = 1
	st.SoundRadius = 20
	assert.True(t, Visible(st, v), "объект в радиусе звука обязан передаваться")

	st.SoundRadius = 5 // слишком далеко
	assert.False(t, Visible(st, v))
}

// 2D-звук радиуса не имеет и слышен отовсюду
func Test2DSoundAlwaysVisible(t *testing.T) {
	st := objAt(mgl32.Vec3{0, 0, 100}, 0.5)
	st.SoundIndex = -2
	assert.True(t, Visible(st, lookingForward()))
}

// Поворот наблюдателя двигает фрустум
func TestViewerRotation(t *testing.T) {
	// развернулись на 180° вокруг Y: теперь смотрим вдоль +Z
	v := &Viewer{Orientation: mgl32.Vec3{0, math.Pi, 0}}

	assert.True(t, Visible(objAt(mgl32.Vec3{0, 0, 10}, 0.5), v))
	assert.False(t, Visible(objAt(mgl32.Vec3{0, 0, -10}, 0.5), v))
}

// Наблюдатель внутри ограничивающей сферы видит объект, если центр сферы
// перед ним; центр за спиной отсекается раньше проверки сферы
func TestViewerInsideSphere(t *testing.T) {
	st := objAt(mgl32.Vec3{0, 0, 2}, 5) // центр за спиной, но мы внутри
	st.ViewRadius = 5
	assert.False(t, Visible(st, lookingForward()),
		"за спиной отсечение срабатывает до проверки сферы")

	front := objAt(mgl32.Vec3{0, 0, -2}, 5)
	assert.True(t, Visible(front, lookingForward()))
}
