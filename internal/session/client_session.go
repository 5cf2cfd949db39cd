package session

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/annel0/netreplica/internal/codec"
	"github.com/annel0/netreplica/internal/logging"
	"github.com/annel0/netreplica/internal/replica"
	"github.com/annel0/netreplica/internal/scene"
	"github.com/annel0/netreplica/internal/transport"
)

// ClientSession — сторона клиента: бутстрап по надёжному каналу,
// зонды UDP-HERE, применение снапшотов и отправка ввода
type ClientSession struct {
	rep *replica.ClientReplica

	stream  *transport.StreamConn
	packets transport.PacketConn

	prefix codec.PrefixReader

	playerIndex  uint8
	bootstrapped bool
	gotSnapshot  bool

	inputSeq uint32

	localPos    mgl32.Vec3
	localOrient mgl32.Vec3

	logger *logging.Logger
}

// NewClientSession собирает клиентскую сессию из готовых каналов
func NewClientSession(sc scene.Adapter, stream *transport.StreamConn, packets transport.PacketConn, base *codec.WireConfig, windowMs int, eps float64) *ClientSession {
	return &ClientSession{
		rep:     replica.NewClientReplica(sc, base, windowMs, eps),
		stream:  stream,
		packets: packets,
		logger:  logging.GetSessionLogger(),
	}
}

// SetPrefixReader регистрирует разборщик прикладного префикса init-пакета
func (c *ClientSession) SetPrefixReader(r codec.PrefixReader) { c.prefix = r }

// Replica возвращает клиентский восстановитель
func (c *ClientSession) Replica() *replica.ClientReplica { return c.rep }

// PlayerIndex возвращает индекс игрока после бутстрапа
func (c *ClientSession) PlayerIndex() uint8 { return c.playerIndex }

// Bootstrapped сообщает, завершён ли бутстрап
func (c *ClientSession) Bootstrapped() bool { return c.bootstrapped }

// SetLocalTransform задаёт позицию/ориентацию игрока для input-пакетов
func (c *ClientSession) SetLocalTransform(pos, orient mgl32.Vec3) {
	c.localPos = pos
	c.localOrient = orient
}

// Tick выполняет один шаг клиента; dt — время кадра рендера в секундах.
// Ошибка означает разрыв надёжного канала.
func (c *ClientSession) Tick(dt float32) error {
	// До первого снапшота сервер узнаёт наш UDP-адрес по зондам
	if !c.gotSnapshot {
		if err := c.packets.Send(codec.EncodeUDPHere(), nil); err != nil {
			c.logger.Debug("Зонд UDP-HERE: %v", err)
		}
	}

	payloads, err := c.stream.Poll()
	if err != nil {
		return fmt.Errorf("надёжный канал: %w", err)
	}
	for _, p := range payloads {
		if c.bootstrapped {
			continue // после бутстрапа надёжный канал молчит
		}
		if err := c.applyInit(p); err != nil {
			return err
		}
	}

	for _, d := range c.packets.Poll() {
		if !c.bootstrapped {
			continue
		}
		if err := c.rep.ApplySnapshot(d.Data); err != nil {
			// оборванная датаграмма; курсор не двигается
			c.logger.Debug("Датаграмма отброшена: %v", err)
			continue
		}
		c.gotSnapshot = true
	}

	if c.bootstrapped {
		c.rep.Advance(dt)
		c.sendInput()
	}
	return nil
}

func (c *ClientSession) applyInit(payload []byte) error {
	pkt, cfg, err := codec.DecodeInit(payload, c.prefix, codec.DefaultWireConfig())
	if err != nil {
		return fmt.Errorf("разбор init-пакета: %w", err)
	}

	if err := c.rep.ApplyInit(pkt, cfg); err != nil {
		return err
	}
	c.playerIndex = pkt.PlayerIndex
	c.bootstrapped = true

	if err := c.stream.Send(codec.EncodeTCPAck(c.playerIndex)); err != nil {
		return fmt.Errorf("отправка ACK: %w", err)
	}
	c.logger.Info("Бутстрап завершён, индекс игрока %d", c.playerIndex)
	return nil
}

// sendInput отправляет ввод с монотонным номером; поле подтверждения —
// последний применённый кадр
func (c *ClientSession) sendInput() {
	c.inputSeq++

	ack := c.rep.LastFrame()
	if ack < 0 {
		ack = 0
	}

	payload := codec.EncodeInput(&codec.InputPacket{
		PlayerIndex: c.playerIndex,
		Sequence:    c.inputSeq,
		AckFrame:    uint32(ack),
		Position:    c.localPos,
		Orientation: c.localOrient,
	})
	if err := c.packets.Send(payload, nil); err != nil {
		c.logger.Debug("Отправка ввода: %v", err)
	}
}

// Close разрывает каналы клиента
func (c *ClientSession) Close() {
	c.stream.Close()
	c.packets.Close()
}
