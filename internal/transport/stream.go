package transport

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/annel0/netreplica/internal/logging"
)

// StreamConn — надёжный упорядоченный канал поверх net.Conn (TCP или
// KCP-сессия). Кадр: u32-длина (LE), затем полезная нагрузка.
// Приём накапливается фоновой горутиной и выдаётся через Poll.
//
// KCP-каналы дополнительно сжимают полезную нагрузку zstd-кадрами;
// предел длины применяется к тому, что реально уходит на провод.
type StreamConn struct {
	conn net.Conn

	frames chan []byte

	mu      sync.Mutex
	err     error
	closed  bool
	sendMu  sync.Mutex
	tracker statTracker

	compressor   *zstd.Encoder
	decompressor *zstd.Decoder

	logger *logging.Logger
}

// NewStreamConn оборачивает установленное соединение и запускает приём.
// compress включает zstd полезной нагрузки (используется KCP-каналом).
func NewStreamConn(conn net.Conn, compress bool) *StreamConn {
	c := &StreamConn{
		conn:   conn,
		frames: make(chan []byte, 64),
		logger: logging.GetTransportLogger(),
	}
	c.tracker.stats.Connected = true
	c.tracker.stats.RemoteAddr = conn.RemoteAddr().String()

	if compress {
		c.compressor, _ = zstd.NewWriter(nil)
		c.decompressor, _ = zstd.NewReader(nil)
	}

	go c.readLoop()
	return c
}

// Send кадрирует и отправляет полезную нагрузку
func (c *StreamConn) Send(payload []byte) error {
	wire := payload
	if c.compressor != nil {
		wire = c.compressor.EncodeAll(payload, nil)
	}
	if len(wire) < MinFramePayload || len(wire) > MaxFramePayload {
		return fmt.Errorf("transport: недопустимая длина кадра %d", len(wire))
	}

	var header [4]byte
	binary.LittleEndian.PutUint32(header[:], uint32(len(wire)))

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if _, err := c.conn.Write(header[:]); err != nil {
		c.fail(err)
		return err
	}
	if _, err := c.conn.Write(wire); err != nil {
		c.fail(err)
		return err
	}
	c.tracker.sent(4 + len(wire))
	return nil
}

// Poll выгребает принятые полезные нагрузки. Ненулевая ошибка означает
// разрыв: соединение мертво, клиент подлежит отключению.
func (c *StreamConn) Poll() ([][]byte, error) {
	var out [][]byte
	for {
		select {
		case f := <-c.frames:
			out = append(out, f)
		default:
			c.mu.Lock()
			err := c.err
			c.mu.Unlock()
			return out, err
		}
	}
}

// Close закрывает соединение
func (c *StreamConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return c.conn.Close()
}

// RemoteAddr возвращает адрес удалённого узла
func (c *StreamConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// Stats возвращает счётчики канала
func (c *StreamConn) Stats() ConnectionStats {
	return c.tracker.snapshot()
}

func (c *StreamConn) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err == nil && !c.closed {
		c.err = err
	}
	c.tracker.disconnected()
}

// readLoop накапливает байты до полных кадров. Недопустимая длина —
// протокольная ошибка, соединение рвётся.
func (c *StreamConn) readLoop() {
	var header [4]byte
	for {
		if _, err := io.ReadFull(c.conn, header[:]); err != nil {
			c.fail(err)
			return
		}

		size := int(binary.LittleEndian.Uint32(header[:]))
		if size < MinFramePayload || size > MaxFramePayload {
			c.logger.Warn("Кадр недопустимой длины %d от %s, разрыв", size, c.RemoteAddr())
			c.fail(fmt.Errorf("transport: кадр длиной %d вне пределов", size))
			c.conn.Close()
			return
		}

		payload := make([]byte, size)
		if _, err := io.ReadFull(c.conn, payload); err != nil {
			c.fail(err)
			return
		}
		c.tracker.received(4 + size)

		if c.decompressor != nil {
			decoded, err := c.decompressor.DecodeAll(payload, nil)
			if err != nil {
				c.logger.Warn("Повреждённый zstd-кадр от %s, разрыв", c.RemoteAddr())
				c.fail(err)
				c.conn.Close()
				return
			}
			payload = decoded
		}

		c.frames <- payload
	}
}
