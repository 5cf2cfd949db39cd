package session

import (
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/annel0/netreplica/internal/codec"
	"github.com/annel0/netreplica/internal/logging"
	"github.com/annel0/netreplica/internal/metrics"
	"github.com/annel0/netreplica/internal/replica"
	"github.com/annel0/netreplica/internal/scene"
	"github.com/annel0/netreplica/internal/transport"
)

// ServerClient — подключённый клиент на стороне сервера
type ServerClient struct {
	ID     string // для логов и статуса
	Cursor *replica.ClientCursor
	Stream *transport.StreamConn

	// Addr — датаграммный адрес, выученный из зонда UDP-HERE
	Addr net.Addr

	initSent bool
}

// ServerSession — авторитетная сторона: рукопожатие, цикл тиков 20 Гц,
// поклиентные дельты и сборка подтверждений
type ServerSession struct {
	repl    *replica.ServerReplicator
	source  transport.StreamSource
	packets transport.PacketConn

	tables *codec.PrecacheTables
	prefix codec.PrefixWriter

	// clients мутируется только на потоке тика; RWMutex защищает
	// чтения сервера статуса
	mu         sync.RWMutex
	clients    map[uint8]*ServerClient
	nextPlayer uint8

	// OnJoin вызывается при подключении клиента; хост обычно создаёт
	// объект игрока и проставляет cursor.InGameObjectID
	OnJoin func(c *ServerClient)

	metrics *metrics.Replication
	logger  *logging.Logger
}

// NewServerSession собирает серверную сессию из готовых каналов.
// Каналы передаются явно, чтобы роль both могла подключить петлю.
func NewServerSession(sc scene.Adapter, tables *codec.PrecacheTables, source transport.StreamSource, packets transport.PacketConn, wireCfg *codec.WireConfig) *ServerSession {
	wireCfg.Widths = tables.Widths()
	return &ServerSession{
		repl:    replica.NewServerReplicator(sc, wireCfg),
		source:  source,
		packets: packets,
		tables:  tables,
		clients: make(map[uint8]*ServerClient),
		logger:  logging.GetSessionLogger(),
	}
}

// SetPrefixWriter регистрирует прикладной префикс init-пакета
func (s *ServerSession) SetPrefixWriter(w codec.PrefixWriter) { s.prefix = w }

// SetMetrics подключает метрики репликации
func (s *ServerSession) SetMetrics(m *metrics.Replication) { s.metrics = m }

// Replicator возвращает серверный репликатор (регистрация объектов)
func (s *ServerSession) Replicator() *replica.ServerReplicator { return s.repl }

// Clients возвращает копию карты подключённых клиентов
func (s *ServerSession) Clients() map[uint8]*ServerClient {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[uint8]*ServerClient, len(s.clients))
	for k, v := range s.clients {
		out[k] = v
	}
	return out
}

// Tick выполняет один атомарный шаг сервера: приём соединений и
// пакетов, построение снапшота, поклиентная отправка, GC
func (s *ServerSession) Tick() {
	s.acceptClients()
	s.pollStreams()
	s.pollPackets()

	snap := s.repl.BuildSnapshot()

	s.sendInits()
	s.sendSnapshots(snap)

	s.collectGarbage()
	s.updateGauges()
}

// acceptClients регистрирует новые надёжные соединения
func (s *ServerSession) acceptClients() {
	for _, conn := range s.source.Poll() {
		player := s.nextPlayer
		s.nextPlayer++

		client := &ServerClient{
			ID:     uuid.NewString(),
			Cursor: replica.NewClientCursor(player),
			Stream: conn,
		}
		s.mu.Lock()
		s.clients[player] = client
		s.mu.Unlock()
		s.logger.Info("Клиент %s подключён как игрок %d (%s)", client.ID, player, conn.RemoteAddr())

		if s.OnJoin != nil {
			s.OnJoin(client)
		}
	}
}

// pollStreams обрабатывает надёжный канал: подтверждения бутстрапа и
// разрывы
func (s *ServerSession) pollStreams() {
	for player, client := range s.clients {
		payloads, err := client.Stream.Poll()
		for _, p := range payloads {
			if len(p) == 0 {
				continue
			}
			switch p[0] {
			case codec.PacketTCPAck:
				if _, ackErr := codec.DecodeTCPAck(p); ackErr != nil {
					s.logger.Warn("Игрок %d: некорректный ACK: %v", player, ackErr)
					continue
				}
				client.Cursor.ReadyForGame = true
				s.logger.Info("Игрок %d готов к игре", player)
			default:
				// неизвестный тип пакета игнорируется
			}
		}
		if err != nil {
			s.disconnect(player, client)
		}
	}
}

// disconnect удаляет клиента; кадры ему больше не отправляются
func (s *ServerSession) disconnect(player uint8, client *ServerClient) {
	s.logger.Info("Игрок %d (%s) отключён", player, client.ID)
	client.Stream.Close()
	s.mu.Lock()
	delete(s.clients, player)
	s.mu.Unlock()
}

// pollPackets обрабатывает датаграммы: зонды UDP-HERE и ввод игроков
func (s *ServerSession) pollPackets() {
	for _, d := range s.packets.Poll() {
		if len(d.Data) == 0 {
			continue
		}
		switch d.Data[0] {
		case codec.PacketUDPHere:
			s.learnEndpoint(d.From)
		case codec.PacketPlayerInput:
			s.acceptInput(d.Data)
		default:
			// неизвестный тип пакета игнорируется
		}
	}
}

// learnEndpoint связывает источник зонда UDP-HERE с клиентом.
// Зонд однобайтовый, поэтому привязка идёт по хосту надёжного
// соединения; среди совпавших берётся первый без подтверждённого UDP.
func (s *ServerSession) learnEndpoint(from net.Addr) {
	fromHost := hostOf(from.String())

	var fallback *ServerClient
	for _, client := range s.clients {
		if client.Cursor.UDPConfirmed {
			continue
		}
		if fallback == nil {
			fallback = client
		}
		if hostOf(client.Stream.RemoteAddr()) == fromHost {
			s.confirmEndpoint(client, from)
			return
		}
	}
	// Петлевые каналы не имеют сопоставимых адресов
	if fallback != nil {
		s.confirmEndpoint(fallback, from)
	}
}

func (s *ServerSession) confirmEndpoint(client *ServerClient, from net.Addr) {
	client.Addr = from
	client.Cursor.UDPConfirmed = true
	s.logger.Info("Игрок %d: UDP-адрес %s подтверждён", client.Cursor.PlayerIndex, from)
}

func hostOf(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

// acceptInput применяет input-пакет с монотонным порядковым номером
func (s *ServerSession) acceptInput(data []byte) {
	input, err := codec.DecodeInput(data)
	if err != nil {
		s.logger.Debug("Оборванный input-пакет отброшен: %v", err)
		return
	}

	client, ok := s.clients[input.PlayerIndex]
	if !ok {
		// недействительный player_index — пакет игнорируется
		return
	}
	client.Cursor.AcceptInput(input)
}

// sendInits отправляет init-пакеты клиентам, ещё не прошедшим бутстрап
func (s *ServerSession) sendInits() {
	for player, client := range s.clients {
		if client.initSent {
			continue
		}

		payload := codec.EncodeInit(
			s.prefix,
			player,
			s.tables,
			s.repl.Frame(),
			s.repl.InitObjects(client.Cursor),
			s.repl.Config(),
		)
		if err := client.Stream.Send(payload); err != nil {
			s.logger.Error("Игрок %d: отправка init-пакета: %v", player, err)
			continue
		}
		client.initSent = true
		s.logger.Info("Игрок %d: init-пакет отправлен (%d байт, кадр %d)",
			player, len(payload), s.repl.Frame())
	}
}

// sendSnapshots рассылает дельты кадра. Цикл снапшотов активен, когда
// все подключённые клиенты готовы.
func (s *ServerSession) sendSnapshots(snap *replica.Snapshot) {
	if len(s.clients) == 0 {
		return
	}
	for _, client := range s.clients {
		if !client.Cursor.ReadyForGame {
			return
		}
	}

	for player, client := range s.clients {
		if !client.Cursor.UDPConfirmed {
			continue
		}

		payload, objects := s.repl.EncodeFor(client.Cursor, snap)
		if err := s.packets.Send(payload, client.Addr); err != nil {
			s.logger.Debug("Игрок %d: отправка снапшота: %v", player, err)
			if s.metrics != nil {
				s.metrics.DatagramsDropped.Inc()
			}
			continue
		}
		if s.metrics != nil {
			s.metrics.SnapshotBytes.Observe(float64(len(payload)))
			s.metrics.DatagramsSent.Inc()
			s.metrics.ObjectsEncoded.Add(float64(objects))
		}
	}
}

// collectGarbage выбрасывает снапшоты старше минимального
// подтверждённого кадра среди клиентов
func (s *ServerSession) collectGarbage() {
	if len(s.clients) == 0 {
		return
	}
	min := int64(-1)
	first := true
	for _, client := range s.clients {
		if first || client.Cursor.LastAckedFrame < min {
			min = client.Cursor.LastAckedFrame
			first = false
		}
	}
	s.repl.GC(min)
}

func (s *ServerSession) updateGauges() {
	if s.metrics == nil {
		return
	}
	s.metrics.StoreDepth.Set(float64(s.repl.Store().Depth()))
	s.metrics.SlotsUsed.Set(float64(s.repl.Slots().Len()))
}

// Close разрывает все соединения
func (s *ServerSession) Close() {
	for player, client := range s.clients {
		s.disconnect(player, client)
	}
	s.source.Close()
	s.packets.Close()
}
