package codec

import "github.com/go-gl/mathgl/mgl32"

// Кодовая книга направлений: 162 единичных нормали (вершины дважды
// разбитого икосаэдра), исторически известные как таблица нормалей Quake III.
// Байт на проводе — индекс в этой таблице.
var dirTable = [162]mgl32.Vec3{
	{0.850651, 0.000000, 0.525731},
	{0.864188, 0.238856, 0.442863},
	{0.809017, 0.500000, 0.309017},
	{0.681718, 0.716567, 0.147621},
	{0.525731, 0.850651, 0.000000},
	{0.716567, 0.147621, 0.681718},
	{0.688191, 0.425325, 0.587785},
	{0.587785, 0.688191, 0.425325},
	{0.442863, 0.864188, 0.238856},
	{0.500000, 0.309017, 0.809017},
	{0.425325, 0.587785, 0.688191},
	{0.309017, 0.809017, 0.500000},
	{0.238856, 0.442863, 0.864188},
	{0.147621, 0.681718, 0.716567},
	{0.000000, 0.525731, 0.850651},
	{-0.525731, 0.850651, 0.000000},
	{-0.295242, 0.955423, 0.000000},
	{0.000000, 1.000000, 0.000000},
	{0.295242, 0.955423, 0.000000},
	{-0.442863, 0.864188, 0.238856},
	{-0.162460, 0.951057, 0.262866},
	{0.162460, 0.951057, 0.262866},
	{-0.309017, 0.809017, 0.500000},
	{0.000000, 0.850651, 0.525731},
	{-0.147621, 0.681718, 0.716567},
	{0.000000, -0.525731, 0.850651},
	{0.238856, -0.442863, 0.864188},
	{0.500000, -0.309017, 0.809017},
	{0.716567, -0.147621, 0.681718},
	{0.000000, -0.295242, 0.955423},
	{0.262866, -0.162460, 0.951057},
	{0.525731, 0.000000, 0.850651},
	{0.000000, 0.000000, 1.000000},
	{0.262866, 0.162460, 0.951057},
	{0.000000, 0.295242, 0.955423},
	{-0.850651, 0.000000, 0.525731},
	{-0.716567, -0.147621, 0.681718},
	{-0.500000, -0.309017, 0.809017},
	{-0.238856, -0.442863, 0.864188},
	{-0.716567, 0.147621, 0.681718},
	{-0.525731, 0.000000, 0.850651},
	{-0.262866, -0.162460, 0.951057},
	{-0.500000, 0.309017, 0.809017},
	{-0.262866, 0.162460, 0.951057},
	{-0.238856, 0.442863, 0.864188},
	{-0.864188, 0.238856, 0.442863},
	{-0.809017, 0.500000, 0.309017},
	{-0.681718, 0.716567, 0.147621},
	{-0.688191, 0.425325, 0.587785},
	{-0.587785, 0.688191, 0.425325},
	{-0.425325, 0.587785, 0.688191},
	{0.850651, 0.000000, -0.525731},
	{0.955423, 0.000000, -0.295242},
	{1.000000, 0.000000, 0.000000},
	{0.955423, 0.000000, 0.295242},
	{0.864188, 0.238856, -0.442863},
	{0.951057, 0.262866, -0.162460},
	{0.951057, 0.262866, 0.162460},
	{0.809017, 0.500000, -0.309017},
	{0.850651, 0.525731, 0.000000},
	{0.681718, 0.716567, -0.147621},
	{0.000000, 0.525731, -0.850651},
	{-0.147621, 0.681718, -0.716567},
	{-0.309017, 0.809017, -0.500000},
	{-0.442863, 0.864188, -0.238856},
	{0.147621, 0.681718, -0.716567},
	{0.000000, 0.850651, -0.525731},
	{-0.162460, 0.951057, -0.262866},
	{0.309017, 0.809017, -0.500000},
	{0.162460, 0.951057, -0.262866},
	{0.442863, 0.864188, -0.238856},
	{0.238856, 0.442863, -0.864188},
	{0.500000, 0.309017, -0.809017},
	{0.716567, 0.147621, -0.681718},
	{0.425325, 0.587785, -0.688191},
	{0.688191, 0.425325, -0.587785},
	{0.587785, 0.688191, -0.425325},
	{0.525731, -0.850651, 0.000000},
	{0.442863, -0.864188, 0.238856},
	{0.309017, -0.809017, 0.500000},
	{0.147621, -0.681718, 0.716567},
	{0.681718, -0.716567, 0.147621},
	{0.587785, -0.688191, 0.425325},
	{0.425325, -0.587785, 0.688191},
	{0.809017, -0.500000, 0.309017},
	{0.688191, -0.425325, 0.587785},
	{0.864188, -0.238856, 0.442863},
	{0.681718, -0.716567, -0.147621},
	{0.809017, -0.500000, -0.309017},
	{0.864188, -0.238856, -0.442863},
	{0.850651, -0.525731, 0.000000},
	{0.951057, -0.262866, -0.162460},
	{0.951057, -0.262866, 0.162460},
	{-0.525731, -0.850651, 0.000000},
	{-0.295242, -0.955423, 0.000000},
	{0.000000, -1.000000, 0.000000},
	{0.295242, -0.955423, 0.000000},
	{-0.442863, -0.864188, 0.238856},
	{-0.162460, -0.951057, 0.262866},
	{0.162460, -0.951057, 0.262866},
	{-0.309017, -0.809017, 0.500000},
	{0.000000, -0.850651, 0.525731},
	{-0.147621, -0.681718, 0.716567},
	{-0.681718, -0.716567, 0.147621},
	{-0.809017, -0.500000, 0.309017},
	{-0.864188, -0.238856, 0.442863},
	{-0.587785, -0.688191, 0.425325},
	{-0.688191, -0.425325, 0.587785},
	{-0.425325, -0.587785, 0.688191},
	{-0.850651, 0.000000, -0.525731},
	{-0.716567, 0.147621, -0.681718},
	{-0.500000, 0.309017, -0.809017},
	{-0.238856, 0.442863, -0.864188},
	{-0.864188, 0.238856, -0.442863},
	{-0.688191, 0.425325, -0.587785},
	{-0.425325, 0.587785, -0.688191},
	{-0.809017, 0.500000, -0.309017},
	{-0.587785, 0.688191, -0.425325},
	{-0.681718, 0.716567, -0.147621},
	{-0.955423, 0.000000, -0.295242},
	{-1.000000, 0.000000, 0.000000},
	{-0.955423, 0.000000, 0.295242},
	{-0.951057, 0.262866, -0.162460},
	{-0.951057, 0.262866, 0.162460},
	{-0.850651, 0.525731, 0.000000},
	{0.000000, -0.525731, -0.850651},
	{0.000000, -0.295242, -0.955423},
	{0.000000, 0.000000, -1.000000},
	{0.000000, 0.295242, -0.955423},
	{0.238856, -0.442863, -0.864188},
	{0.262866, -0.162460, -0.951057},
	{0.262866, 0.162460, -0.951057},
	{0.500000, -0.309017, -0.809017},
	{0.525731, 0.000000, -0.850651},
	{0.716567, -0.147621, -0.681718},
	{0.147621, -0.681718, -0.716567},
	{0.309017, -0.809017, -0.500000},
	{0.442863, -0.864188, -0.238856},
	{0.425325, -0.587785, -0.688191},
	{0.587785, -0.688191, -0.425325},
	{0.688191, -0.425325, -0.587785},
	{-0.716567, -0.147621, -0.681718},
	{-0.500000, -0.309017, -0.809017},
	{-0.238856, -0.442863, -0.864188},
	{-0.525731, 0.000000, -0.850651},
	{-0.262866, -0.162460, -0.951057},
	{-0.262866, 0.162460, -0.951057},
	{-0.442863, -0.864188, -0.238856},
	{-0.309017, -0.809017, -0.500000},
	{-0.147621, -0.681718, -0.716567},
	{-0.162460, -0.951057, -0.262866},
	{0.000000, -0.850651, -0.525731},
	{0.162460, -0.951057, -0.262866},
	{-0.864188, -0.238856, -0.442863},
	{-0.809017, -0.500000, -0.309017},
	{-0.681718, -0.716567, -0.147621},
	{-0.951057, -0.262866, -0.162460},
	{-0.850651, -0.525731, 0.000000},
	{-0.951057, -0.262866, 0.162460},
	{-0.688191, -0.425325, -0.587785},
	{-0.587785, -0.688191, -0.425325},
	{-0.425325, -0.587785, -0.688191},
}

// DirToByte возвращает индекс нормали с максимальным скалярным произведением.
// Нулевой вектор даёт индекс 0, равные произведения — наименьший индекс.
func DirToByte(v mgl32.Vec3) byte {
	if v.X() == 0 && v.Y() == 0 && v.Z() == 0 {
		return 0
	}

	best := 0
	bestDot := float32(-2)
	for i := range dirTable {
		d := v.Dot(dirTable[i])
		if d > bestDot {
			bestDot = d
			best = i
		}
	}
	return byte(best)
}

// ByteToDir возвращает нормаль по индексу; индексы вне таблицы дают нулевой вектор
func ByteToDir(b byte) mgl32.Vec3 {
	if int(b) >= len(dirTable) {
		return mgl32.Vec3{}
	}
	return dirTable[b]
}
