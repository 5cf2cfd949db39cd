package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/annel0/netreplica/internal/codec"
	"github.com/annel0/netreplica/internal/config"
	"github.com/annel0/netreplica/internal/logging"
	"github.com/annel0/netreplica/internal/metrics"
	"github.com/annel0/netreplica/internal/scene"
	"github.com/annel0/netreplica/internal/session"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML-конфигурации")
	roleFlag := flag.String("role", "", "переопределение роли: server|client|both")
	flag.Parse()

	// Инициализируем систему логирования
	if err := logging.InitDefaultLogger("replica"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Error("❌ Ошибка чтения конфигурации: %v", err)
		log.Fatalf("❌ Ошибка чтения конфигурации: %v", err)
	}
	if *roleFlag != "" {
		cfg.Role = config.Role(*roleFlag)
		if !cfg.Role.Valid() {
			log.Fatalf("❌ Неизвестная роль %q", *roleFlag)
		}
	}

	logging.Info("🎮 Запуск ядра репликации, роль %s", cfg.Role)
	logging.Info("📡 Надёжный канал %s:%d (%s), датаграммы %s:%d",
		cfg.Reliable.Host, cfg.GetReliablePort(), cfg.Reliable.Kind,
		cfg.Datagram.Host, cfg.GetDatagramPort())

	// === СЦЕНЫ И ПРЕКЭШ ===

	serverScene := scene.NewMemoryScene()
	clientScene := scene.NewMemoryScene()

	tables := &codec.PrecacheTables{
		Sounds:     []string{"res://sounds/step.ogg", "res://sounds/shot.ogg"},
		Models:     []string{"res://models/crate.glb", "res://models/barrel.glb", "res://models/drone.glb"},
		Animations: []string{"idle", "walk", "fly"},
		Particles:  []string{"res://fx/sparks.tscn"},
	}

	sess, err := session.New(cfg, serverScene, clientScene, tables)
	if err != nil {
		logging.Error("❌ Ошибка сборки сессии: %v", err)
		log.Fatalf("❌ Ошибка сборки сессии: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// === ДЕМО-МИР (только серверные роли) ===

	if sess.Server != nil {
		repl := sess.Server.Replicator()

		crate := serverScene.Spawn(scene.Sample{
			Position:   mgl32.Vec3{10, 0, 5},
			Scale:      mgl32.Vec3{1, 1, 1},
			Model:      0,
			Animation:  codec.NoIndex,
			Particle:   codec.NoIndex,
			Sound:      codec.NoIndex,
			ViewRadius: 2,
		})
		if _, err := repl.RegisterObject(crate); err != nil {
			log.Fatalf("❌ %v", err)
		}

		drone := serverScene.Spawn(scene.Sample{
			Velocity:   mgl32.Vec3{3, 0, 0},
			Model:      2,
			Animation:  2,
			Particle:   codec.NoIndex,
			Sound:      codec.NoIndex,
			ViewRadius: 1,
			Compressed: true,
		})
		if _, err := repl.RegisterObject(drone); err != nil {
			log.Fatalf("❌ %v", err)
		}

		logging.Info("✅ Демо-мир: %d объектов зарегистрировано", repl.Slots().Len())
	}

	// === МЕТРИКИ И СТАТУС ===

	if cfg.Metrics.Enabled {
		repl := metrics.NewReplication("replica")
		repl.StartProcessCollector(ctx)
		if sess.Server != nil {
			sess.Server.SetMetrics(repl)
		}

		statusSrv := metrics.NewStatusServer(cfg.GetMetricsPort(), func() metrics.StatusReport {
			report := metrics.StatusReport{
				SessionID: sess.ID,
				Role:      string(sess.Role),
			}
			if sess.Server != nil {
				r := sess.Server.Replicator()
				report.Frame = r.Frame()
				report.StoreDepth = r.Store().Depth()
				report.SlotsUsed = r.Slots().Len()
				for _, client := range sess.Server.Clients() {
					stats := client.Stream.Stats()
					cs := metrics.ClientStatus{
						PlayerIndex:    client.Cursor.PlayerIndex,
						RemoteAddr:     client.Stream.RemoteAddr(),
						LastAckedFrame: client.Cursor.LastAckedFrame,
						UDPConfirmed:   client.Cursor.UDPConfirmed,
						ReadyForGame:   client.Cursor.ReadyForGame,
						BytesSent:      stats.BytesSent,
						BytesReceived:  stats.BytesReceived,
					}
					report.Clients = append(report.Clients, cs)
				}
			}
			return report
		})
		statusSrv.Start()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer shutdownCancel()
			statusSrv.Stop(shutdownCtx)
		}()

		logging.Info("📊 Метрики: http://localhost:%d/metrics", cfg.GetMetricsPort())
		logging.Info("❤️  Health check: http://localhost:%d/health", cfg.GetMetricsPort())
	}

	// === ЦИКЛ ТИКОВ ===

	errCh := make(chan error, 1)
	go func() {
		errCh <- sess.Run(ctx)
	}()

	logging.Info("✅ Сессия %s запущена (%d Гц)", sess.ID, cfg.GetTickRate())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info("🛑 Получен сигнал %v, остановка...", sig)
		cancel()
		<-errCh
	case err := <-errCh:
		if err != nil && err != context.Canceled {
			logging.Error("❌ Сессия завершилась с ошибкой: %v", err)
		}
	}

	logging.Info("👋 Ядро репликации остановлено")
}
