// Package transport реализует два канала ядра: надёжный упорядоченный
// поток (TCP или KCP, кадрирование u32-длиной) и ненадёжные датаграммы
// (UDP). Чтение ведут фоновые горутины, но наружу данные выдаются только
// через неблокирующий Poll на потоке тика — сцена остаётся
// однопоточной.
package transport

import (
	"net"
	"sync"
	"time"
)

// Пределы кадрирования надёжного канала
const (
	// MinFramePayload и MaxFramePayload ограничивают длину полезной
	// нагрузки; нарушение — протокольная ошибка, соединение рвётся
	MinFramePayload = 1
	MaxFramePayload = 65000

	// MaxDatagram — максимальный размер одной датаграммы
	MaxDatagram = 1400
)

// Datagram — одна принятая датаграмма с адресом отправителя
type Datagram struct {
	Data []byte
	From net.Addr
}

// PacketConn — ненадёжный датаграммный канал
type PacketConn interface {
	// Poll выгребает все накопленные датаграммы, не блокируясь
	Poll() []Datagram
	// Send отправляет датаграмму; to игнорируется соединёнными сокетами
	Send(data []byte, to net.Addr) error
	LocalAddr() net.Addr
	Close() error
}

// StreamSource выдаёт новые входящие надёжные соединения
type StreamSource interface {
	// Poll возвращает принятые с прошлого вызова соединения
	Poll() []*StreamConn
	Close() error
}

// ConnectionStats — счётчики одного канала
type ConnectionStats struct {
	PacketsSent     uint64
	PacketsReceived uint64
	BytesSent       uint64
	BytesReceived   uint64
	LastActivity    time.Time
	Connected       bool
	RemoteAddr      string
}

// statTracker потокобезопасно ведёт ConnectionStats
type statTracker struct {
	mu    sync.Mutex
	stats ConnectionStats
}

func (t *statTracker) sent(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stats.PacketsSent++
	t.stats.BytesSent += uint64(n)
	t.stats.LastActivity = time.Now()
}

func (t *statTracker) received(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stats.PacketsReceived++
	t.stats.BytesReceived += uint64(n)
	t.stats.LastActivity = time.Now()
}

func (t *statTracker) disconnected() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stats.Connected = false
}

func (t *statTracker) snapshot() ConnectionStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.stats
}
