// Package config parses the service's environment-variable configuration
// once at startup, in the teacher's style: read each variable, fall back to
// a literal default, no separate configuration library.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the full set of environment-driven options from spec.md §6.
type Config struct {
	PoolSize          int
	PoolBasePort      int
	WorkerMemoryLimit string
	WorkerCPULimit    float64
	Timeout           time.Duration
	MaxTimeout        time.Duration
	StaticCheck       bool

	KafkaBootstrapServers string
	KafkaRequestTopic     string
	KafkaResponseTopic    string
	KafkaConsumerGroup    string
	ChatEncryptionKey     string
	RunnerEncryptionKey   string

	Env string // RUNNER_ENV, e.g. "production"
}

// Load reads the process environment into a Config, applying the defaults
// documented in spec.md §6.
func Load() Config {
	return Config{
		PoolSize:          envInt("POOL_SIZE", 5),
		PoolBasePort:      envInt("POOL_BASE_PORT", 9000),
		WorkerMemoryLimit: envString("WORKER_MEMORY_LIMIT", "128m"),
		WorkerCPULimit:    envFloat("WORKER_CPU_LIMIT", 0.25),
		Timeout:           time.Duration(envInt("TIMEOUT", 10)) * time.Second,
		MaxTimeout:        time.Duration(envInt("RUNNER_MAX_TIMEOUT", 60)) * time.Second,
		StaticCheck:       envBool("STATIC_CHECK", false),

		KafkaBootstrapServers: envString("KAFKA_BOOTSTRAP_SERVERS", ""),
		KafkaRequestTopic:     envString("KAFKA_CODE_REQUEST_TOPIC", "code-execution-requests"),
		KafkaResponseTopic:    envString("KAFKA_CODE_RESPONSE_TOPIC", "code-execution-responses"),
		KafkaConsumerGroup:    envString("KAFKA_CONSUMER_GROUP", "runner"),
		ChatEncryptionKey:     envString("CHAT_KAFKA_ENCRYPTION_KEY", ""),
		RunnerEncryptionKey:   envString("RUNNER_KAFKA_ENCRYPTION_KEY", ""),

		Env: envString("RUNNER_ENV", ""),
	}
}

// QueueEnabled mirrors spec.md §6: a non-empty bootstrap-servers string
// enables C7.
func (c Config) QueueEnabled() bool {
	return c.KafkaBootstrapServers != ""
}

// ResolveDeadline applies spec.md §3's submission rule: an unset or
// non-positive requested timeout falls back to the configured default,
// and any requested timeout is clamped to MaxTimeout.
func (c Config) ResolveDeadline(requestedSeconds int) time.Duration {
	deadline := c.Timeout
	if requestedSeconds > 0 {
		deadline = time.Duration(requestedSeconds) * time.Second
	}
	if c.MaxTimeout > 0 && deadline > c.MaxTimeout {
		deadline = c.MaxTimeout
	}
	return deadline
}

// MemoryBytes parses WorkerMemoryLimit (e.g. "128m", "512m", "1g") into
// bytes for the Docker resources struct.
func (c Config) MemoryBytes() int64 {
	return parseMemory(c.WorkerMemoryLimit)
}

// NanoCPUs converts WorkerCPULimit (fractional cores) into Docker's
// NanoCPUs unit (1.0 core = 1e9).
func (c Config) NanoCPUs() int64 {
	return int64(c.WorkerCPULimit * 1e9)
}

func parseMemory(s string) int64 {
	if s == "" {
		return 128 * 1024 * 1024
	}
	unit := int64(1)
	numPart := s
	switch s[len(s)-1] {
	case 'k', 'K':
		unit = 1024
		numPart = s[:len(s)-1]
	case 'm', 'M':
		unit = 1024 * 1024
		numPart = s[:len(s)-1]
	case 'g', 'G':
		unit = 1024 * 1024 * 1024
		numPart = s[:len(s)-1]
	}
	n, err := strconv.ParseInt(numPart, 10, 64)
	if err != nil {
		return 128 * 1024 * 1024
	}
	return n * unit
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
