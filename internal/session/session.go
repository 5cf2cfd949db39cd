// Package session связывает каналы, репликатор и восстановитель в
// работающие роли: server, client или both (внутрипроцессная петля).
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/annel0/netreplica/internal/codec"
	"github.com/annel0/netreplica/internal/config"
	"github.com/annel0/netreplica/internal/logging"
	"github.com/annel0/netreplica/internal/scene"
	"github.com/annel0/netreplica/internal/transport"
)

// Session владеет ролями процесса. При роли both сервер и клиент
// соединены петлевыми каналами; каждая сторона получает ссылку на канал
// другой явно, без глобального состояния.
type Session struct {
	ID   string
	Role config.Role

	Server *ServerSession
	Client *ClientSession

	tickRate int
	logger   *logging.Logger
}

// New собирает сессию согласно конфигурации. tables нужны только
// серверным ролям; clientScene — клиентским.
func New(cfg *config.Config, serverScene, clientScene scene.Adapter, tables *codec.PrecacheTables) (*Session, error) {
	s := &Session{
		ID:       uuid.NewString(),
		Role:     cfg.Role,
		tickRate: cfg.GetTickRate(),
		logger:   logging.GetSessionLogger(),
	}

	reliableAddr := fmt.Sprintf("%s:%d", cfg.Reliable.Host, cfg.GetReliablePort())
	datagramAddr := fmt.Sprintf("%s:%d", cfg.Datagram.Host, cfg.GetDatagramPort())

	switch cfg.Role {
	case config.RoleServer:
		source, err := transport.ListenStream(cfg.Reliable.Kind, reliableAddr)
		if err != nil {
			return nil, err
		}
		packets, err := transport.ListenPacket(datagramAddr)
		if err != nil {
			source.Close()
			return nil, err
		}
		s.Server = NewServerSession(serverScene, tables, source, packets, codec.DefaultWireConfig())

	case config.RoleClient:
		stream, err := transport.DialStream(cfg.Reliable.Kind, reliableAddr)
		if err != nil {
			return nil, err
		}
		packets, err := transport.DialPacket(datagramAddr)
		if err != nil {
			stream.Close()
			return nil, err
		}
		s.Client = NewClientSession(clientScene, stream, packets,
			codec.DefaultWireConfig(), cfg.GetSmoothingMs(), cfg.GetSmoothingEps())

	case config.RoleBoth:
		serverStream, clientStream := transport.LoopbackStreamPair()
		serverPackets, clientPackets := transport.LoopbackPacketPair()

		s.Server = NewServerSession(serverScene, tables,
			transport.NewSingleStreamSource(serverStream), serverPackets, codec.DefaultWireConfig())
		s.Client = NewClientSession(clientScene, clientStream, clientPackets,
			codec.DefaultWireConfig(), cfg.GetSmoothingMs(), cfg.GetSmoothingEps())

	default:
		return nil, fmt.Errorf("session: неизвестная роль %q", cfg.Role)
	}

	s.logger.Info("Сессия %s собрана, роль %s", s.ID, cfg.Role)
	return s, nil
}

// Run крутит кооперативный цикл тиков до отмены контекста.
// Сервер тикает на своей частоте; клиент — на каждом проходе цикла
// (в демо-процессе частота рендера совпадает с частотой цикла).
func (s *Session) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(s.tickRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			s.Close()
			return ctx.Err()
		case now := <-ticker.C:
			dt := float32(now.Sub(last).Seconds())
			last = now

			if s.Server != nil {
				s.Server.Tick()
			}
			if s.Client != nil {
				if err := s.Client.Tick(dt); err != nil {
					s.Close()
					return err
				}
			}
		}
	}
}

// Close разрывает все каналы сессии
func (s *Session) Close() {
	if s.Server != nil {
		s.Server.Close()
	}
	if s.Client != nil {
		s.Client.Close()
	}
}
