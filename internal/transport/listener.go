package transport

import (
	"fmt"
	"net"

	kcp "github.com/xtaci/kcp-go/v5"

	"github.com/annel0/netreplica/internal/logging"
)

// Виды надёжного канала
const (
	KindTCP = "tcp"
	KindKCP = "kcp"
)

// StreamListener принимает входящие надёжные соединения в фоне и выдаёт
// их через Poll
type StreamListener struct {
	accepted chan *StreamConn
	closer   func() error
	addr     net.Addr
	logger   *logging.Logger
}

// ListenStream начинает слушать надёжные соединения указанного вида
func ListenStream(kind, addr string) (*StreamListener, error) {
	l := &StreamListener{
		accepted: make(chan *StreamConn, 16),
		logger:   logging.GetTransportLogger(),
	}

	switch kind {
	case KindKCP:
		ln, err := kcp.ListenWithOptions(addr, nil, 0, 0)
		if err != nil {
			return nil, fmt.Errorf("kcp listen %s: %w", addr, err)
		}
		l.closer = ln.Close
		l.addr = ln.Addr()
		go func() {
			for {
				sess, err := ln.AcceptKCP()
				if err != nil {
					return
				}
				l.logger.Info("Принято KCP-соединение от %s", sess.RemoteAddr())
				l.accepted <- NewStreamConn(sess, true)
			}
		}()
	case KindTCP, "":
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("tcp listen %s: %w", addr, err)
		}
		l.closer = ln.Close
		l.addr = ln.Addr()
		go func() {
			for {
				conn, err := ln.Accept()
				if err != nil {
					return
				}
				l.logger.Info("Принято TCP-соединение от %s", conn.RemoteAddr())
				l.accepted <- NewStreamConn(conn, false)
			}
		}()
	default:
		return nil, fmt.Errorf("неизвестный вид надёжного канала %q", kind)
	}

	return l, nil
}

// Poll возвращает соединения, принятые с прошлого вызова
func (l *StreamListener) Poll() []*StreamConn {
	var out []*StreamConn
	for {
		select {
		case c := <-l.accepted:
			out = append(out, c)
		default:
			return out
		}
	}
}

// Addr возвращает фактический адрес прослушивания
func (l *StreamListener) Addr() net.Addr {
	return l.addr
}

// Close останавливает приём
func (l *StreamListener) Close() error {
	if l.closer != nil {
		return l.closer()
	}
	return nil
}

// DialStream устанавливает надёжное соединение с сервером
func DialStream(kind, addr string) (*StreamConn, error) {
	switch kind {
	case KindKCP:
		sess, err := kcp.DialWithOptions(addr, nil, 0, 0)
		if err != nil {
			return nil, fmt.Errorf("kcp dial %s: %w", addr, err)
		}
		return NewStreamConn(sess, true), nil
	case KindTCP, "":
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("tcp dial %s: %w", addr, err)
		}
		return NewStreamConn(conn, false), nil
	default:
		return nil, fmt.Errorf("неизвестный вид надёжного канала %q", kind)
	}
}
