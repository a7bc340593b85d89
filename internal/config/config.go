package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the chat sync client.
type Config struct {
	AppName  string
	AppEnv   string
	AppPort  string
	LogLevel string

	APIBaseURL string
	APITimeout time.Duration

	SocketURL            string
	MaxReconnectAttempts int
	ReconnectBaseDelay   time.Duration
	PingInterval         time.Duration

	TypingIdleWindow   time.Duration
	RemoteTypingExpiry time.Duration
	HistoryPageSize    int
	OptimisticSend     bool

	UserID          string
	UserName        string
	CredentialToken string
	CredentialKey   string
	RedisURL        string

	NATSURL               string
	NATSMembershipSubject string

	InspectorToken   string
	InspectorOrigins string
}

// HTTPAddress returns the address the inspector server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// IsDevelopment reports whether console logging should be used.
func (c Config) IsDevelopment() bool {
	return strings.EqualFold(c.AppEnv, "development")
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("CHATSYNC")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "gema chat sync")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8090")
	v.SetDefault("log.level", "info")
	v.SetDefault("api.timeout", "10s")
	v.SetDefault("socket.max_reconnect_attempts", 5)
	v.SetDefault("socket.reconnect_base_delay", "1s")
	v.SetDefault("socket.ping_interval", "30s")
	v.SetDefault("typing.idle_window", "1s")
	v.SetDefault("typing.remote_expiry", "6s")
	v.SetDefault("history.page_size", 50)
	v.SetDefault("send.optimistic", true)
	v.SetDefault("credential.key", "chatsync:credential")
	v.SetDefault("nats.membership_subject", "gema.chat.membership")

	durations := map[string]time.Duration{}
	for _, key := range []string{"api.timeout", "socket.reconnect_base_delay", "socket.ping_interval", "typing.idle_window", "typing.remote_expiry"} {
		parsed, err := time.ParseDuration(strings.TrimSpace(v.GetString(key)))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		if parsed < 0 {
			return Config{}, fmt.Errorf("invalid %s: must not be negative", key)
		}
		durations[key] = parsed
	}

	cfg := Config{
		AppName:               v.GetString("app.name"),
		AppEnv:                v.GetString("app.env"),
		AppPort:               v.GetString("app.port"),
		LogLevel:              strings.ToLower(v.GetString("log.level")),
		APIBaseURL:            strings.TrimSpace(v.GetString("api.base_url")),
		APITimeout:            durations["api.timeout"],
		SocketURL:             strings.TrimSpace(v.GetString("socket.url")),
		MaxReconnectAttempts:  v.GetInt("socket.max_reconnect_attempts"),
		ReconnectBaseDelay:    durations["socket.reconnect_base_delay"],
		PingInterval:          durations["socket.ping_interval"],
		TypingIdleWindow:      durations["typing.idle_window"],
		RemoteTypingExpiry:    durations["typing.remote_expiry"],
		HistoryPageSize:       v.GetInt("history.page_size"),
		OptimisticSend:        v.GetBool("send.optimistic"),
		UserID:                strings.TrimSpace(v.GetString("session.user_id")),
		UserName:              strings.TrimSpace(v.GetString("session.user_name")),
		CredentialToken:       strings.TrimSpace(v.GetString("credential.token")),
		CredentialKey:         v.GetString("credential.key"),
		RedisURL:              v.GetString("redis.url"),
		NATSURL:               v.GetString("nats.url"),
		NATSMembershipSubject: v.GetString("nats.membership_subject"),
		InspectorToken:        strings.TrimSpace(v.GetString("inspector.token")),
		InspectorOrigins:      strings.TrimSpace(v.GetString("inspector.allow_origins")),
	}

	if cfg.APIBaseURL == "" || cfg.SocketURL == "" {
		return Config{}, fmt.Errorf("api base url and socket url must be provided")
	}

	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = 5
	}

	if cfg.HistoryPageSize <= 0 || cfg.HistoryPageSize > 100 {
		cfg.HistoryPageSize = 50
	}

	return cfg, nil
}
