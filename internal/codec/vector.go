package codec

import (
	"errors"

	"github.com/go-gl/mathgl/mgl32"
	crunch "github.com/superwhiskers/crunch/v3"
	"github.com/x448/float16"
)

// VectorMode выбирает формат сериализации векторных полей
type VectorMode int

const (
	// VectorFull — 3×float32 (2×float32 для 2D)
	VectorFull VectorMode = iota
	// VectorHalf — 3×float16 (2×float16 для 2D)
	VectorHalf
	// VectorCompressed — float16-модуль + байт направления из кодовой книги.
	// Применяется только к ориентации и скорости трёхмерных объектов
	// с флагом FlagCompressed; выбирается не конфигурацией, а флагом объекта.
	VectorCompressed
)

// ErrShortBuffer возвращается при недостатке байт во входном буфере.
// Датаграмма с такой ошибкой отбрасывается целиком.
var ErrShortBuffer = errors.New("codec: буфер короче ожидаемого")

// remaining возвращает количество непрочитанных байт
func remaining(b *crunch.Buffer) int64 {
	return b.ByteCapacity() - b.ByteOffset()
}

// need проверяет, что в буфере осталось хотя бы n байт
func need(b *crunch.Buffer, n int64) error {
	if remaining(b) < n {
		return ErrShortBuffer
	}
	return nil
}

func growWriteByte(b *crunch.Buffer, v byte) {
	b.Grow(1)
	b.WriteByteNext(v)
}

func growWriteBytes(b *crunch.Buffer, v []byte) {
	if len(v) == 0 {
		return
	}
	b.Grow(int64(len(v)))
	b.WriteBytesNext(v)
}

func growWriteU16(b *crunch.Buffer, v uint16) {
	b.Grow(2)
	b.WriteU16LENext([]uint16{v})
}

// growWriteU24 пишет 24-битное число (младшие байты вперёд)
func growWriteU24(b *crunch.Buffer, v uint32) {
	b.Grow(3)
	b.WriteBytesNext([]byte{byte(v), byte(v >> 8), byte(v >> 16)})
}

func growWriteU32(b *crunch.Buffer, v uint32) {
	b.Grow(4)
	b.WriteU32LENext([]uint32{v})
}

func growWriteF32(b *crunch.Buffer, v float32) {
	b.Grow(4)
	b.WriteF32LENext([]float32{v})
}

// growWriteF16 пишет значение как IEEE 754 binary16
func growWriteF16(b *crunch.Buffer, v float32) {
	growWriteU16(b, float16.Fromfloat32(v).Bits())
}

func readByte(b *crunch.Buffer) (byte, error) {
	if err := need(b, 1); err != nil {
		return 0, err
	}
	return b.ReadByteNext(), nil
}

func readBytes(b *crunch.Buffer, n int64) ([]byte, error) {
	if err := need(b, n); err != nil {
		return nil, err
	}
	return b.ReadBytesNext(n), nil
}

func readU16(b *crunch.Buffer) (uint16, error) {
	if err := need(b, 2); err != nil {
		return 0, err
	}
	return b.ReadU16LENext(1)[0], nil
}

func readU24(b *crunch.Buffer) (uint32, error) {
	raw, err := readBytes(b, 3)
	if err != nil {
		return 0, err
	}
	return uint32(raw[0]) | uint32(raw[1])<<8 | uint32(raw[2])<<16, nil
}

func readU32(b *crunch.Buffer) (uint32, error) {
	if err := need(b, 4); err != nil {
		return 0, err
	}
	return b.ReadU32LENext(1)[0], nil
}

func readF32(b *crunch.Buffer) (float32, error) {
	if err := need(b, 4); err != nil {
		return 0, err
	}
	return b.ReadF32LENext(1)[0], nil
}

func readF16(b *crunch.Buffer) (float32, error) {
	bits, err := readU16(b)
	if err != nil {
		return 0, err
	}
	return float16.Frombits(bits).Float32(), nil
}

// writeVector сериализует вектор в выбранном режиме.
// Для 2D пишутся только компоненты X и Y (Z у двумерных объектов нулевая,
// угол поворота живёт в Y).
func writeVector(b *crunch.Buffer, v mgl32.Vec3, mode VectorMode, is2D bool) {
	switch mode {
	case VectorCompressed:
		// Ранжирование по скалярному произведению не зависит от длины v,
		// нормализация не нужна
		growWriteF16(b, v.Len())
		growWriteByte(b, DirToByte(v))
	case VectorHalf:
		growWriteF16(b, v.X())
		growWriteF16(b, v.Y())
		if !is2D {
			growWriteF16(b, v.Z())
		}
	default:
		growWriteF32(b, v.X())
		growWriteF32(b, v.Y())
		if !is2D {
			growWriteF32(b, v.Z())
		}
	}
}

// readVector разбирает вектор, записанный writeVector
func readVector(b *crunch.Buffer, mode VectorMode, is2D bool) (mgl32.Vec3, error) {
	switch mode {
	case VectorCompressed:
		mag, err := readF16(b)
		if err != nil {
			return mgl32.Vec3{}, err
		}
		dir, err := readByte(b)
		if err != nil {
			return mgl32.Vec3{}, err
		}
		return ByteToDir(dir).Mul(mag), nil
	case VectorHalf:
		x, err := readF16(b)
		if err != nil {
			return mgl32.Vec3{}, err
		}
		y, err := readF16(b)
		if err != nil {
			return mgl32.Vec3{}, err
		}
		var z float32
		if !is2D {
			if z, err = readF16(b); err != nil {
				return mgl32.Vec3{}, err
			}
		}
		return mgl32.Vec3{x, y, z}, nil
	default:
		x, err := readF32(b)
		if err != nil {
			return mgl32.Vec3{}, err
		}
		y, err := readF32(b)
		if err != nil {
			return mgl32.Vec3{}, err
		}
		var z float32
		if !is2D {
			if z, err = readF32(b); err != nil {
				return mgl32.Vec3{}, err
			}
		}
		return mgl32.Vec3{x, y, z}, nil
	}
}
