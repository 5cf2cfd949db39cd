package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Role определяет роль процесса в сессии
type Role string

const (
	RoleServer Role = "server"
	RoleClient Role = "client"
	RoleBoth   Role = "both"
)

// Valid проверяет, что роль известна
func (r Role) Valid() bool {
	return r == RoleServer || r == RoleClient || r == RoleBoth
}

// Config корневая структура конфигурации процесса репликации
type Config struct {
	Role     Role           `yaml:"role"`
	Reliable EndpointConfig `yaml:"reliable"`
	Datagram EndpointConfig `yaml:"datagram"`
	Session  SessionConfig  `yaml:"session"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// EndpointConfig описывает одну конечную точку (listen для сервера, connect для клиента)
type EndpointConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// Kind выбирает реализацию надёжного канала: tcp (по умолчанию) или kcp
	Kind string `yaml:"kind"`
}

// SessionConfig параметры сессии репликации
type SessionConfig struct {
	TickRate     int     `yaml:"tick_rate"`     // Гц, по умолчанию 20
	MaxClients   int     `yaml:"max_clients"`   // информационно; жёсткий предел — ёмкость таблицы слотов
	SmoothingMs  int     `yaml:"smoothing_ms"`  // окно сглаживания позиции на клиенте
	SmoothingEps float64 `yaml:"smoothing_eps"` // порог расхождения для запуска сглаживания
}

// MetricsConfig параметры HTTP-сервера статуса и метрик
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// GetReliablePort возвращает порт надёжного канала с поддержкой fallback значений
func (c *Config) GetReliablePort() int {
	return getPortWithEnvFallback(c.Reliable.Port, "REPLICA_TCP_PORT", 7777)
}

// GetDatagramPort возвращает порт датаграмм с поддержкой fallback значений
func (c *Config) GetDatagramPort() int {
	return getPortWithEnvFallback(c.Datagram.Port, "REPLICA_UDP_PORT", 7778)
}

// GetMetricsPort возвращает порт метрик с поддержкой fallback значений
func (c *Config) GetMetricsPort() int {
	return getPortWithEnvFallback(c.Metrics.Port, "REPLICA_METRICS_PORT", 2112)
}

// GetTickRate возвращает частоту тиков сервера
func (c *Config) GetTickRate() int {
	if c.Session.TickRate > 0 {
		return c.Session.TickRate
	}
	return 20
}

// GetSmoothingMs возвращает окно сглаживания в миллисекундах
func (c *Config) GetSmoothingMs() int {
	if c.Session.SmoothingMs > 0 {
		return c.Session.SmoothingMs
	}
	return 100
}

// GetSmoothingEps возвращает порог запуска сглаживания
func (c *Config) GetSmoothingEps() float64 {
	if c.Session.SmoothingEps > 0 {
		return c.Session.SmoothingEps
	}
	return 0.01
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}

// Default возвращает конфигурацию по умолчанию (сервер на локальных портах)
func Default() *Config {
	return &Config{
		Role:     RoleServer,
		Reliable: EndpointConfig{Host: "0.0.0.0", Kind: "tcp"},
		Datagram: EndpointConfig{Host: "0.0.0.0"},
		Session:  SessionConfig{TickRate: 20, MaxClients: 16, SmoothingMs: 100, SmoothingEps: 0.01},
		Metrics:  MetricsConfig{Enabled: true},
	}
}

// Load читает YAML файл конфигурации.
// Если path == "", пытается прочитать из ENV REPLICA_CONFIG или возвращает дефолты.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("REPLICA_CONFIG")
		if path == "" {
			return Default(), nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if !cfg.Role.Valid() {
		return nil, fmt.Errorf("неизвестная роль %q (допустимо: server, client, both)", cfg.Role)
	}

	return cfg, nil
}
