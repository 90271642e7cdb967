package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const EnvPrefix = "VOICERELAY"

type Config struct {
	Mode         string        `mapstructure:"mode"`
	Port         int           `mapstructure:"port"`
	ReadLimit    int64         `mapstructure:"read_limit"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	SendBuffer   int           `mapstructure:"send_buffer"`
	PingPeriod   time.Duration `mapstructure:"ping_period"`
	JoinPolicy   string        `mapstructure:"join_policy"`

	JoinRate JoinRateConfig `mapstructure:"join_rate"`
	Log      LogConfig      `mapstructure:"log"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Peer     PeerConfig     `mapstructure:"peer"`
	Audio    AudioConfig    `mapstructure:"audio"`
}

type JoinRateConfig struct {
	Limit    int           `mapstructure:"limit"`
	Interval time.Duration `mapstructure:"interval"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// RedisConfig enables the presence mirror when Addr is set.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type PeerConfig struct {
	ID           string   `mapstructure:"id"`
	SignalingURL string   `mapstructure:"signaling_url"`
	ICEServers   []string `mapstructure:"ice_servers"`
	// HTTPPort serves /health and /metrics for the peer; 0 disables it.
	HTTPPort int `mapstructure:"http_port"`
}

type AudioConfig struct {
	SampleRate       int           `mapstructure:"sample_rate"`
	FrameDuration    time.Duration `mapstructure:"frame_duration"`
	SilenceThreshold time.Duration `mapstructure:"silence_threshold"`
	VADMode          int           `mapstructure:"vad_mode"`
	Classifier       string        `mapstructure:"classifier"`
	EnergyThreshold  float64       `mapstructure:"energy_threshold"`
	UtteranceDir     string        `mapstructure:"utterance_dir"`
	MaxUtterance     time.Duration `mapstructure:"max_utterance"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("read_limit", 65536)
	v.SetDefault("write_timeout", "5s")
	v.SetDefault("send_buffer", 32)
	v.SetDefault("ping_period", "0s")
	v.SetDefault("join_policy", "replace")

	v.SetDefault("join_rate.limit", 0)
	v.SetDefault("join_rate.interval", "10s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", "24h")

	v.SetDefault("peer.id", "backend")
	v.SetDefault("peer.signaling_url", "ws://localhost:8080/ws")
	v.SetDefault("peer.ice_servers", []string{"stun:stun.l.google.com:19302"})
	v.SetDefault("peer.http_port", 8081)

	v.SetDefault("audio.sample_rate", 48000)
	v.SetDefault("audio.frame_duration", "20ms")
	v.SetDefault("audio.silence_threshold", "200ms")
	v.SetDefault("audio.vad_mode", 3)
	v.SetDefault("audio.classifier", "webrtc")
	v.SetDefault("audio.energy_threshold", 0.02)
	v.SetDefault("audio.utterance_dir", "")
	v.SetDefault("audio.max_utterance", "30s")
}

// Load reads config/config.<CONFIG_ENV>.yaml (CONFIG_ENV defaults to dev).
// A missing file falls back to defaults.
func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

// LoadFile loads fileName over the defaults and applies VOICERELAY_*
// environment overrides, e.g. VOICERELAY_AUDIO_SAMPLE_RATE.
func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().
		Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Str("join_policy", cfg.JoinPolicy).
		Msg("config ready")
	return &cfg, nil
}

var (
	validSampleRates     = map[int]bool{8000: true, 16000: true, 32000: true, 48000: true}
	validFrameDurations  = map[time.Duration]bool{10 * time.Millisecond: true, 20 * time.Millisecond: true, 30 * time.Millisecond: true}
	validJoinPolicies    = map[string]bool{"": true, "replace": true, "reject": true}
	validClassifierKinds = map[string]bool{"": true, "webrtc": true, "energy": true}
)

func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port must be in 1..65535, got %d", c.Port))
	}
	if c.Peer.HTTPPort < 0 || c.Peer.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("peer.http_port must be in 0..65535, got %d", c.Peer.HTTPPort))
	}
	if c.PingPeriod < 0 {
		errs = append(errs, fmt.Errorf("ping_period must not be negative"))
	}
	if !validJoinPolicies[strings.ToLower(c.JoinPolicy)] {
		errs = append(errs, fmt.Errorf("unknown join_policy %q", c.JoinPolicy))
	}
	if !validSampleRates[c.Audio.SampleRate] {
		errs = append(errs, fmt.Errorf("audio.sample_rate must be one of 8000, 16000, 32000, 48000; got %d", c.Audio.SampleRate))
	}
	if !validFrameDurations[c.Audio.FrameDuration] {
		errs = append(errs, fmt.Errorf("audio.frame_duration must be 10ms, 20ms or 30ms; got %s", c.Audio.FrameDuration))
	}
	if c.Audio.SilenceThreshold < 0 {
		errs = append(errs, fmt.Errorf("audio.silence_threshold must not be negative"))
	}
	if c.Audio.VADMode < 0 || c.Audio.VADMode > 3 {
		errs = append(errs, fmt.Errorf("audio.vad_mode must be in 0..3, got %d", c.Audio.VADMode))
	}
	if !validClassifierKinds[strings.ToLower(c.Audio.Classifier)] {
		errs = append(errs, fmt.Errorf("unknown audio.classifier %q", c.Audio.Classifier))
	}
	if c.Audio.MaxUtterance < 0 {
		errs = append(errs, fmt.Errorf("audio.max_utterance must not be negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
