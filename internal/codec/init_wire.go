package codec

import (
	"fmt"

	crunch "github.com/superwhiskers/crunch/v3"
)

// PrefixWriter пишет необязательный прикладной префикс init-пакета.
// nil — префикса нет.
type PrefixWriter func(b *crunch.Buffer)

// PrefixReader разбирает прикладной префикс на клиенте. Обязан прочитать
// ровно столько, сколько записал парный PrefixWriter.
type PrefixReader func(b *crunch.Buffer) error

// InitPacket — разобранный init-пакет рукопожатия
type InitPacket struct {
	PlayerIndex uint8
	Tables      *PrecacheTables
	Frame       uint32
	Records     []*ObjectRecord
}

// EncodeInit собирает init-пакет: префикс, индекс игрока, четыре списка
// прекэша, номер кадра и полные (без baseline) записи объектов.
// Отсечение видимости на начальном снапшоте выключено; собственный объект
// игрока вызывающий в objects не включает.
func EncodeInit(prefix PrefixWriter, playerIndex uint8, tables *PrecacheTables, frame uint32, objects []*ObjectState, cfg *WireConfig) []byte {
	b := crunch.NewBuffer()

	if prefix != nil {
		prefix(b)
	}

	growWriteByte(b, playerIndex)
	tables.EncodeTables(b)
	growWriteU24(b, frame)

	countOffset := b.ByteOffset()
	growWriteU16(b, 0)

	var count uint16
	for _, obj := range objects {
		if EncodeObject(b, obj, nil, cfg) {
			count++
		}
	}
	b.WriteU16LE(countOffset, []uint16{count})

	return b.Bytes()
}

// DecodeInit разбирает init-пакет. Ширины индексов прекэша выводятся из
// только что прочитанных списков, поэтому конфигурация провода
// возвращается вместе с пакетом.
func DecodeInit(data []byte, prefix PrefixReader, base *WireConfig) (*InitPacket, *WireConfig, error) {
	b := crunch.NewBuffer(data)

	if prefix != nil {
		if err := prefix(b); err != nil {
			return nil, nil, fmt.Errorf("прикладной префикс: %w", err)
		}
	}

	playerIndex, err := readByte(b)
	if err != nil {
		return nil, nil, err
	}

	tables, err := DecodeTables(b)
	if err != nil {
		return nil, nil, err
	}

	cfg := *base
	cfg.Widths = tables.Widths()

	frame, err := readU24(b)
	if err != nil {
		return nil, nil, err
	}
	count, err := readU16(b)
	if err != nil {
		return nil, nil, err
	}

	records := make([]*ObjectRecord, 0, count)
	for i := 0; i < int(count); i++ {
		rec, err := DecodeObject(b, &cfg)
		if err != nil {
			return nil, nil, err
		}
		records = append(records, rec)
	}

	return &InitPacket{
		PlayerIndex: playerIndex,
		Tables:      tables,
		Frame:       frame,
		Records:     records,
	}, &cfg, nil
}
