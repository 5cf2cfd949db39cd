// Package metrics — наблюдаемость ядра репликации: prometheus-метрики
// цикла снапшотов, системные датчики процесса и HTTP-сервер статуса.
package metrics

import (
	"context"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/annel0/netreplica/internal/logging"
)

// Replication — метрики цикла репликации
type Replication struct {
	SnapshotBytes    prometheus.Histogram
	ObjectsEncoded   prometheus.Counter
	DatagramsSent    prometheus.Counter
	DatagramsDropped prometheus.Counter
	StoreDepth       prometheus.Gauge
	SlotsUsed        prometheus.Gauge

	ProcessCPU prometheus.Gauge
	ProcessRSS prometheus.Gauge
}

// NewReplication создаёт и регистрирует метрики в дефолтном регистре
func NewReplication(namespace string) *Replication {
	m := &Replication{
		SnapshotBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "snapshot_bytes",
			Help:      "Размер датаграмм снапшотов.",
			Buckets:   []float64{32, 64, 128, 256, 512, 1024, 1400},
		}),
		ObjectsEncoded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "objects_encoded_total",
			Help:      "Число записей объектов, закодированных в датаграммы.",
		}),
		DatagramsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datagrams_sent_total",
			Help:      "Отправленные датаграммы снапшотов.",
		}),
		DatagramsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datagrams_dropped_total",
			Help:      "Датаграммы, не ушедшие из-за ошибок отправки.",
		}),
		StoreDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_store_depth",
			Help:      "Число снапшотов, удерживаемых до подтверждения.",
		}),
		SlotsUsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "slots_used",
			Help:      "Занятые слоты таблицы идентификаторов.",
		}),
		ProcessCPU: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "process_cpu_percent",
			Help:      "CPU процесса по данным gopsutil.",
		}),
		ProcessRSS: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "process_rss_bytes",
			Help:      "Резидентная память процесса.",
		}),
	}

	prometheus.MustRegister(
		m.SnapshotBytes, m.ObjectsEncoded, m.DatagramsSent, m.DatagramsDropped,
		m.StoreDepth, m.SlotsUsed, m.ProcessCPU, m.ProcessRSS,
	)
	return m
}

// StartProcessCollector периодически обновляет системные датчики
func (m *Replication) StartProcessCollector(ctx context.Context) {
	logger := logging.GetComponentLogger("metrics")

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		logger.Warn("Системные датчики недоступны: %v", err)
		return
	}

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if cpu, err := proc.CPUPercent(); err == nil {
					m.ProcessCPU.Set(cpu)
				}
				if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
					m.ProcessRSS.Set(float64(mem.RSS))
				}
			}
		}
	}()
}
