package codec

import (
	crunch "github.com/superwhiskers/crunch/v3"
)

// Пределы провода
const (
	// MaxDatagramSize — жёсткий потолок датаграммы снапшота
	MaxDatagramSize = 1400
	// MaxInputSize — потолок клиентского input-пакета
	MaxInputSize = 1024
	// MaxReliablePayload — предел полезной нагрузки надёжного канала
	MaxReliablePayload = 65000
)

// Типы пакетов (первый байт)
const (
	// PacketUDPHere — однобайтовый зонд клиента, по которому сервер узнаёт
	// UDP-адрес (клиент -> сервер, датаграмма)
	PacketUDPHere byte = 0
	// PacketPlayerInput — ввод игрока (клиент -> сервер, датаграмма)
	PacketPlayerInput byte = 1
	// PacketTCPAck — подтверждение init-пакета (клиент -> сервер, надёжный канал)
	PacketTCPAck byte = 0
)

// SnapshotWriter собирает датаграмму снапшота по одному объекту,
// не позволяя превысить MaxDatagramSize. Формат: frame u24, count u16,
// записи объектов, затем список удалений (u16-счётчик + идентификаторы).
type SnapshotWriter struct {
	buf         *crunch.Buffer
	count       uint16
	countOffset int64
}

// NewSnapshotWriter начинает датаграмму кадра frame
func NewSnapshotWriter(frame uint32) *SnapshotWriter {
	w := &SnapshotWriter{buf: crunch.NewBuffer()}
	growWriteU24(w.buf, frame)
	w.countOffset = w.buf.ByteOffset()
	growWriteU16(w.buf, 0) // заполняется в Finish
	return w
}

// Len возвращает текущий размер датаграммы
func (w *SnapshotWriter) Len() int {
	return int(w.buf.ByteCapacity())
}

// Count возвращает число уже записанных объектов
func (w *SnapshotWriter) Count() uint16 {
	return w.count
}

// TryAdd кодирует дельту объекта и добавляет её, если датаграмма вместе с
// зарезервированным хвостом (reserve байт под список удалений) остаётся в
// пределах MaxDatagramSize. Возвращает false при нехватке места —
// объект будет рассмотрен на следующем тике.
func (w *SnapshotWriter) TryAdd(cur, baseline *ObjectState, cfg *WireConfig, reserve int) bool {
	tmp := crunch.NewBuffer()
	if !EncodeObject(tmp, cur, baseline, cfg) {
		// Подавлена целиком — места не занимает, считать её не нужно
		return true
	}
	if w.Len()+int(tmp.ByteCapacity())+reserve > MaxDatagramSize {
		return false
	}
	growWriteBytes(w.buf, tmp.Bytes())
	w.count++
	return true
}

// Finish дописывает список удалений, проставляет счётчик объектов и
// возвращает готовую датаграмму
func (w *SnapshotWriter) Finish(deleted []NetworkID) []byte {
	growWriteU16(w.buf, uint16(len(deleted)))
	for _, id := range deleted {
		growWriteU16(w.buf, uint16(id&IndexMask))
	}
	w.buf.WriteU16LE(w.countOffset, []uint16{w.count})
	return w.buf.Bytes()
}

// SnapshotPacket — разобранная датаграмма снапшота
type SnapshotPacket struct {
	Frame   uint32
	Records []*ObjectRecord
	Deleted []NetworkID
}

// DecodeSnapshot разбирает датаграмму целиком. Любая ошибка означает
// обрыв — вызывающий отбрасывает датаграмму, курсор не двигается.
func DecodeSnapshot(data []byte, cfg *WireConfig) (*SnapshotPacket, error) {
	b := crunch.NewBuffer(data)

	frame, err := readU24(b)
	if err != nil {
		return nil, err
	}
	count, err := readU16(b)
	if err != nil {
		return nil, err
	}

	pkt := &SnapshotPacket{Frame: frame, Records: make([]*ObjectRecord, 0, count)}
	for i := 0; i < int(count); i++ {
		rec, err := DecodeObject(b, cfg)
		if err != nil {
			return nil, err
		}
		pkt.Records = append(pkt.Records, rec)
	}

	delCount, err := readU16(b)
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(delCount); i++ {
		id, err := readU16(b)
		if err != nil {
			return nil, err
		}
		pkt.Deleted = append(pkt.Deleted, NetworkID(id)&IndexMask)
	}

	return pkt, nil
}

// DeletionReserve возвращает, сколько байт нужно зарезервировать под
// список удалений из n идентификаторов
func DeletionReserve(n int) int {
	return 2 + 2*n
}
