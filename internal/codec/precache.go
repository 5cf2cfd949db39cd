package codec

import (
	"fmt"

	crunch "github.com/superwhiskers/crunch/v3"
)

// PrecacheTables — четыре упорядоченных списка имён ресурсов, согласованных
// при рукопожатии и неизменных до конца сессии. Индексы на проводе — позиции
// в списках.
type PrecacheTables struct {
	Sounds     []string
	Models     []string
	Animations []string
	Particles  []string
}

// NoIndex — значение «ресурс не задан»
const NoIndex int16 = -1

// IndexWidths хранит ширину индекса каждого списка на проводе:
// 1 байт при длине списка ≤ 255, иначе 2. Производное свойство уже
// согласованных списков, договариваться о нём отдельно не нужно.
//
// Звук — исключение: из-за знакового кодирования 2D-звуков (-(idx+2))
// его индекс всегда передаётся как int16.
type IndexWidths struct {
	Model     int
	Animation int
	Particle  int
}

func widthFor(n int) int {
	if n <= 255 {
		return 1
	}
	return 2
}

// Widths возвращает ширины индексов для согласованных списков
func (t *PrecacheTables) Widths() IndexWidths {
	return IndexWidths{
		Model:     widthFor(len(t.Models)),
		Animation: widthFor(len(t.Animations)),
		Particle:  widthFor(len(t.Particles)),
	}
}

// writeIndex пишет индекс ресурса заданной ширины; NoIndex кодируется
// все-единичным значением
func writeIndex(b *crunch.Buffer, idx int16, width int) {
	if width == 1 {
		if idx < 0 {
			growWriteByte(b, 0xFF)
		} else {
			growWriteByte(b, byte(idx))
		}
		return
	}
	if idx < 0 {
		growWriteU16(b, 0xFFFF)
	} else {
		growWriteU16(b, uint16(idx))
	}
}

// readIndex разбирает индекс ресурса заданной ширины
func readIndex(b *crunch.Buffer, width int) (int16, error) {
	if width == 1 {
		v, err := readByte(b)
		if err != nil {
			return 0, err
		}
		if v == 0xFF {
			return NoIndex, nil
		}
		return int16(v), nil
	}
	v, err := readU16(b)
	if err != nil {
		return 0, err
	}
	if v == 0xFFFF {
		return NoIndex, nil
	}
	return int16(v), nil
}

// writeNameList пишет список имён: u16-счётчик, затем имена с нулевым
// терминатором (UTF-8, содержимое не ограничено)
func writeNameList(b *crunch.Buffer, names []string) {
	growWriteU16(b, uint16(len(names)))
	for _, name := range names {
		growWriteBytes(b, []byte(name))
		growWriteByte(b, 0)
	}
}

// readNameList разбирает список имён, записанный writeNameList
func readNameList(b *crunch.Buffer) ([]string, error) {
	count, err := readU16(b)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, count)
	for i := 0; i < int(count); i++ {
		var name []byte
		for {
			c, err := readByte(b)
			if err != nil {
				return nil, fmt.Errorf("список имён оборван на элементе %d: %w", i, err)
			}
			if c == 0 {
				break
			}
			name = append(name, c)
		}
		names = append(names, string(name))
	}
	return names, nil
}

// EncodeTables сериализует все четыре списка в порядке
// sounds, models, animations, particles
func (t *PrecacheTables) EncodeTables(b *crunch.Buffer) {
	writeNameList(b, t.Sounds)
	writeNameList(b, t.Models)
	writeNameList(b, t.Animations)
	writeNameList(b, t.Particles)
}

// DecodeTables разбирает списки, записанные EncodeTables
func DecodeTables(b *crunch.Buffer) (*PrecacheTables, error) {
	var (
		t   PrecacheTables
		err error
	)
	if t.Sounds, err = readNameList(b); err != nil {
		return nil, err
	}
	if t.Models, err = readNameList(b); err != nil {
		return nil, err
	}
	if t.Animations, err = readNameList(b); err != nil {
		return nil, err
	}
	if t.Particles, err = readNameList(b); err != nil {
		return nil, err
	}
	return &t, nil
}
