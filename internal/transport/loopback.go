package transport

import (
	"net"
)

// Внутрипроцессная петля для роли both: сервер и клиент живут в одном
// процессе и обмениваются сообщениями без сети. Каждая сторона получает
// явную ссылку на канал другой — никакого глобального состояния.

// LoopbackStreamPair возвращает две стороны надёжного канала поверх
// net.Pipe с тем же кадрированием, что и у сетевых каналов
func LoopbackStreamPair() (*StreamConn, *StreamConn) {
	a, b := net.Pipe()
	return NewStreamConn(a, false), NewStreamConn(b, false)
}

// loopbackAddr — фиктивный адрес петлевого датаграммного канала
type loopbackAddr struct{ name string }

func (a loopbackAddr) Network() string { return "loopback" }
func (a loopbackAddr) String() string  { return a.name }

// LoopbackPacket — одна сторона петлевого датаграммного канала.
// Очередь ограничена; переполнение роняет пакеты, как настоящий UDP.
type LoopbackPacket struct {
	name string
	in   chan Datagram
	peer *LoopbackPacket
}

// LoopbackPacketPair возвращает связанные датаграммные каналы
func LoopbackPacketPair() (*LoopbackPacket, *LoopbackPacket) {
	a := &LoopbackPacket{name: "loopback-server", in: make(chan Datagram, 256)}
	b := &LoopbackPacket{name: "loopback-client", in: make(chan Datagram, 256)}
	a.peer, b.peer = b, a
	return a, b
}

// Poll выгребает накопленные датаграммы
func (l *LoopbackPacket) Poll() []Datagram {
	var out []Datagram
	for {
		select {
		case d := <-l.in:
			out = append(out, d)
		default:
			return out
		}
	}
}

// Send кладёт датаграмму в очередь пира; to игнорируется
func (l *LoopbackPacket) Send(data []byte, to net.Addr) error {
	cp := make([]byte, len(data))
	copy(cp, data)

	select {
	case l.peer.in <- Datagram{Data: cp, From: loopbackAddr{l.name}}:
	default:
		// переполнение — пакет теряется
	}
	return nil
}

// LocalAddr возвращает фиктивный адрес стороны
func (l *LoopbackPacket) LocalAddr() net.Addr {
	return loopbackAddr{l.name}
}

// Close — у петли нечего закрывать
func (l *LoopbackPacket) Close() error {
	return nil
}

// singleStreamSource выдаёт одно заранее созданное соединение —
// серверная сторона петлевой пары
type singleStreamSource struct {
	conn *StreamConn
	used bool
}

// NewSingleStreamSource оборачивает готовое соединение в StreamSource
func NewSingleStreamSource(conn *StreamConn) StreamSource {
	return &singleStreamSource{conn: conn}
}

func (s *singleStreamSource) Poll() []*StreamConn {
	if s.used {
		return nil
	}
	s.used = true
	return []*StreamConn{s.conn}
}

func (s *singleStreamSource) Close() error {
	return s.conn.Close()
}
