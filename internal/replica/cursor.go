package replica

import (
	"github.com/annel0/netreplica/internal/codec"
)

// ClientCursor — серверное состояние одного подключённого клиента:
// курсор подтверждений, готовность и последний принятый ввод
type ClientCursor struct {
	PlayerIndex uint8

	// LastAckedFrame — последний подтверждённый кадр; -1 до бутстрапа
	LastAckedFrame int64

	UDPConfirmed bool
	ReadyForGame bool

	// InGameObjectID — объект сцены, представляющий игрока;
	// из его собственных дельт исключается
	InGameObjectID codec.NetworkID
	HasInGameObject bool

	// InputSequence — последний принятый порядковый номер ввода
	InputSequence uint32

	// Viewer — позиция/ориентация из последнего принятого ввода,
	// основа отсечения видимости
	Viewer Viewer
}

// NewClientCursor создаёт курсор до бутстрапа
func NewClientCursor(playerIndex uint8) *ClientCursor {
	return &ClientCursor{
		PlayerIndex:    playerIndex,
		LastAckedFrame: -1,
	}
}

// AcceptInput применяет input-пакет. Устаревшая копия
// (sequence не больше уже принятого) игнорируется; подтверждение двигает
// курсор только вперёд. Возвращает false для отброшенных пакетов.
func (c *ClientCursor) AcceptInput(p *codec.InputPacket) bool {
	if p.Sequence <= c.InputSequence {
		return false
	}

	c.InputSequence = p.Sequence
	c.Viewer.Position = p.Position
	c.Viewer.Orientation = p.Orientation

	if int64(p.AckFrame) > c.LastAckedFrame {
		c.LastAckedFrame = int64(p.AckFrame)
	}
	return true
}
