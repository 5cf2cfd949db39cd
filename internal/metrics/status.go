package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/annel0/netreplica/internal/logging"
)

// StatusReport — сводка сессии для /status
type StatusReport struct {
	SessionID  string         `json:"session_id"`
	Role       string         `json:"role"`
	Frame      uint32         `json:"frame"`
	StoreDepth int            `json:"store_depth"`
	SlotsUsed  int            `json:"slots_used"`
	Clients    []ClientStatus `json:"clients"`
}

// ClientStatus — состояние курсора одного клиента
type ClientStatus struct {
	PlayerIndex    uint8  `json:"player_index"`
	RemoteAddr     string `json:"remote_addr"`
	LastAckedFrame int64  `json:"last_acked_frame"`
	UDPConfirmed   bool   `json:"udp_confirmed"`
	ReadyForGame   bool   `json:"ready_for_game"`

	// Счётчики надёжного канала клиента
	BytesSent     uint64 `json:"bytes_sent"`
	BytesReceived uint64 `json:"bytes_received"`
}

// StatusProvider снимает сводку на момент запроса
type StatusProvider func() StatusReport

// StatusServer — HTTP-сервер /health, /status и /metrics
type StatusServer struct {
	srv    *http.Server
	logger *logging.Logger

	reqDuration *prometheus.HistogramVec
}

// NewStatusServer собирает сервер статуса на указанном порту
func NewStatusServer(port int, provider StatusProvider) *StatusServer {
	gin.SetMode(gin.ReleaseMode)

	s := &StatusServer{
		logger: logging.GetComponentLogger("metrics"),
		reqDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "replica_status",
			Name:      "http_request_duration_seconds",
			Help:      "Длительность HTTP-запросов сервера статуса.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"path", "status"}),
	}
	prometheus.MustRegister(s.reqDuration)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.timing())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, provider())
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.srv = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r,
	}
	return s
}

// Handler возвращает HTTP-обработчик сервера (для тестов)
func (s *StatusServer) Handler() http.Handler {
	return s.srv.Handler
}

// timing записывает длительность запросов в гистограмму
func (s *StatusServer) timing() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.reqDuration.WithLabelValues(
			c.FullPath(), strconv.Itoa(c.Writer.Status()),
		).Observe(time.Since(start).Seconds())
	}
}

// Start запускает сервер в фоне
func (s *StatusServer) Start() {
	go func() {
		s.logger.Info("Сервер статуса слушает %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Сервер статуса: %v", err)
		}
	}()
}

// Stop останавливает сервер
func (s *StatusServer) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
