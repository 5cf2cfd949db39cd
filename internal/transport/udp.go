package transport

import (
	"fmt"
	"net"

	"github.com/annel0/netreplica/internal/logging"
)

// UDPSocket реализует PacketConn поверх UDP. Серверный вариант слушает
// и отвечает по адресам отправителей; клиентский — соединённый сокет,
// который заодно пробивает NAT зондами UDP-HERE.
type UDPSocket struct {
	conn      *net.UDPConn
	connected bool

	packets chan Datagram
	tracker statTracker

	logger *logging.Logger
}

func newUDPSocket(conn *net.UDPConn, connected bool) *UDPSocket {
	s := &UDPSocket{
		conn:      conn,
		connected: connected,
		packets:   make(chan Datagram, 256),
		logger:    logging.GetTransportLogger(),
	}
	go s.readLoop()
	return s
}

// ListenPacket открывает серверный датаграммный сокет
func ListenPacket(addr string) (*UDPSocket, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("udp listen %s: %w", addr, err)
	}
	return newUDPSocket(conn, false), nil
}

// DialPacket открывает клиентский (соединённый) датаграммный сокет
func DialPacket(addr string) (*UDPSocket, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("udp dial %s: %w", addr, err)
	}
	return newUDPSocket(conn, true), nil
}

// Poll выгребает накопленные датаграммы
func (s *UDPSocket) Poll() []Datagram {
	var out []Datagram
	for {
		select {
		case d := <-s.packets:
			out = append(out, d)
		default:
			return out
		}
	}
}

// Send отправляет датаграмму; для соединённого сокета to игнорируется
func (s *UDPSocket) Send(data []byte, to net.Addr) error {
	if len(data) > MaxDatagram {
		return fmt.Errorf("transport: датаграмма %d байт превышает %d", len(data), MaxDatagram)
	}

	var err error
	if s.connected || to == nil {
		_, err = s.conn.Write(data)
	} else {
		udpAddr, ok := to.(*net.UDPAddr)
		if !ok {
			return fmt.Errorf("transport: ожидался *net.UDPAddr, получен %T", to)
		}
		_, err = s.conn.WriteToUDP(data, udpAddr)
	}
	if err != nil {
		return err
	}
	s.tracker.sent(len(data))
	return nil
}

// LocalAddr возвращает локальный адрес сокета
func (s *UDPSocket) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// Close закрывает сокет
func (s *UDPSocket) Close() error {
	return s.conn.Close()
}

// Stats возвращает счётчики сокета
func (s *UDPSocket) Stats() ConnectionStats {
	return s.tracker.snapshot()
}

// readLoop выгребает датаграммы в буферный канал; при переполнении
// датаграммы теряются — канал и так ненадёжный
func (s *UDPSocket) readLoop() {
	buf := make([]byte, MaxDatagram+100)
	for {
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		s.tracker.received(n)

		select {
		case s.packets <- Datagram{Data: data, From: addr}:
		default:
			s.logger.Trace("Очередь датаграмм полна, пакет отброшен")
		}
	}
}
