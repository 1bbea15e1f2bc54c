package config

import (
	"flag"
	"os"
	"runtime"
	"strconv"
)

// Config holds all server tunables. Values are fixed before the server
// starts running; nothing reads them concurrently with a write.
type Config struct {
	Host    string `config:"host"`
	Port    int    `config:"port"`
	Backlog int    `config:"backlog"`
	Workers int    `config:"workers"`

	PollIntervalMs   int `config:"poll.interval.ms"`
	RecvTimeoutSec   int `config:"recv.timeout.sec"`
	SendTimeoutSec   int `config:"send.timeout.sec"`
	MaxHeaderSize    int `config:"max.header.size"`
	MaxContentLength int `config:"max.content.length"`
	MaxRequests      int `config:"max.requests"`

	StreamThreshold  int64 `config:"stream.threshold"`
	StreamBufferSize int   `config:"stream.buffer.size"`
	CacheEntries     int   `config:"cache.entries"`

	StaticDir       string `config:"static.dir"`
	StaticURLPrefix string `config:"static.url.prefix"`

	LogLevel string `config:"log.level"`
	LogFile  string `config:"log.file"`
	Debug    bool   `config:"debug"`
}

// Default returns the built-in configuration without touching flags.
func Default() *Config {
	return &Config{
		Host:             "127.0.0.1",
		Port:             8080,
		Backlog:          10,
		Workers:          defaultWorkers(),
		PollIntervalMs:   100,
		RecvTimeoutSec:   5,
		SendTimeoutSec:   5,
		MaxHeaderSize:    8 * 1024,
		MaxContentLength: 1024 * 1024,
		MaxRequests:      100,
		StreamThreshold:  1024 * 1024,
		StreamBufferSize: 64 * 1024,
		CacheEntries:     100,
		StaticDir:        "static",
		StaticURLPrefix:  "/assets/",
		LogLevel:         "info",
		LogFile:          "server.log",
	}
}

// New loads configuration from flags, with env overrides applied last.
func New() *Config {
	cfg := Default()

	flag.StringVar(&cfg.Host, "host", cfg.Host, "bind address")
	flag.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	flag.IntVar(&cfg.Backlog, "backlog", cfg.Backlog, "listen backlog")
	flag.IntVar(&cfg.Workers, "workers", cfg.Workers, "worker pool size")
	flag.IntVar(&cfg.PollIntervalMs, "poll-interval", cfg.PollIntervalMs, "accept poll interval (ms)")
	flag.IntVar(&cfg.RecvTimeoutSec, "recv-timeout", cfg.RecvTimeoutSec, "socket recv timeout (seconds)")
	flag.IntVar(&cfg.SendTimeoutSec, "send-timeout", cfg.SendTimeoutSec, "socket send timeout (seconds)")
	flag.IntVar(&cfg.MaxRequests, "max-requests", cfg.MaxRequests, "max keep-alive requests per connection")
	flag.StringVar(&cfg.StaticDir, "static-dir", cfg.StaticDir, "static files directory")
	flag.StringVar(&cfg.StaticURLPrefix, "static-prefix", cfg.StaticURLPrefix, "static files URL prefix")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug/info/warn/error)")
	flag.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "log file path")
	flag.BoolVar(&cfg.Debug, "debug", cfg.Debug, "enable wire-level debug logging")

	flag.Parse()

	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if host := os.Getenv("HOST"); host != "" {
		cfg.Host = host
	}

	return cfg
}

// Load reads a JSON or YAML config file through the Manager and resolves it
// into a Config on top of the defaults.
func Load(path string) (*Config, error) {
	m := NewManager()
	if err := m.LoadFromFile(path); err != nil {
		return nil, err
	}
	m.LoadFromEnv("SWERVE")

	cfg := Default()
	if err := m.Unmarshal("", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultWorkers() int {
	n := 2 * runtime.NumCPU()
	if n < 4 {
		n = 4
	}
	return n
}
