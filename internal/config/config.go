package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

type Config struct {
	WSURL           string
	Token           string
	Env             string
	LogLevel        string
	InspectAddr     string
	HistoryPageSize int
	AnnounceVisible time.Duration
	AnnounceExit    time.Duration
	PingInterval    time.Duration
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

// getenvInt 解析正整数，非法或非正值回退到默认值。
func getenvInt(key string, def int) int {
	n, err := strconv.Atoi(getenv(key, ""))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func Load() Config {
	return Config{
		WSURL:           getenv("CHAT_WS_URL", "ws://localhost:8080/api/ws"),
		Token:           getenv("CHAT_TOKEN", ""),
		Env:             getenv("APP_ENV", "dev"),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		InspectAddr:     getenv("INSPECT_ADDR", ":8081"),
		HistoryPageSize: getenvInt("HISTORY_PAGE_SIZE", 30),
		AnnounceVisible: time.Duration(getenvInt("ANNOUNCE_VISIBLE_MS", 5000)) * time.Millisecond,
		AnnounceExit:    time.Duration(getenvInt("ANNOUNCE_EXIT_MS", 500)) * time.Millisecond,
		PingInterval:    time.Duration(getenvInt("PING_INTERVAL_SECONDS", 30)) * time.Second,
	}
}

// Validate 在启动前检查配置；非 dev 环境必须提供 token。
func Validate(cfg Config) error {
	if cfg.WSURL == "" {
		return errors.New("CHAT_WS_URL is required")
	}
	u, err := url.Parse(cfg.WSURL)
	if err != nil {
		return fmt.Errorf("CHAT_WS_URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("CHAT_WS_URL: unsupported scheme %q", u.Scheme)
	}
	if cfg.InspectAddr == "" {
		return errors.New("INSPECT_ADDR is required")
	}
	if cfg.Env != "dev" && cfg.Token == "" {
		return errors.New("CHAT_TOKEN is required outside dev")
	}
	return nil
}
