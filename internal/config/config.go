// Package config loads the process-wide Configuration via viper, mirroring
// the teacher's api/integration-api/config.AppConfig: a struct tagged with
// mapstructure + validate, populated from env vars with sane defaults and
// validated with go-playground/validator before use.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// AudioMode selects which AudioTransport variant the scheduler attaches to a
// session (spec §6).
type AudioMode string

const (
	AudioModeLocal AudioMode = "local"
	AudioModeRtp   AudioMode = "rtp"
)

// AnimationSchedulerType selects between the cooperative engine this repo
// implements and the out-of-scope legacy bulk-scheduling engine (spec §9,
// open question #2). Only Cooperative is implemented here.
type AnimationSchedulerType string

const (
	SchedulerCooperative AnimationSchedulerType = "cooperative"
	SchedulerLegacy       AnimationSchedulerType = "legacy"
)

// Configuration holds the core-relevant subset of process config (spec §6)
// plus the ambient fields a real deployment needs.
type Configuration struct {
	ServiceName string `mapstructure:"service_name" validate:"required"`
	LogLevel    string `mapstructure:"log_level" validate:"required"`
	LogFilePath string `mapstructure:"log_file_path"`

	MsPerTick              uint32                 `mapstructure:"ms_per_tick" validate:"required,gt=0"`
	AudioMode              AudioMode              `mapstructure:"audio_mode" validate:"required,oneof=local rtp"`
	SoundFileLocation      string                 `mapstructure:"sound_file_location" validate:"required"`
	RtpFragmentPackets     bool                   `mapstructure:"rtp_fragment_packets"`
	AnimationSchedulerType AnimationSchedulerType `mapstructure:"animation_scheduler_type" validate:"required,oneof=cooperative legacy"`

	RtpPortRangeStart int `mapstructure:"rtp_port_range_start" validate:"required,gt=0"`
	RtpPortRangeEnd   int `mapstructure:"rtp_port_range_end" validate:"required,gtfield=RtpPortRangeStart"`

	DmxSinkAddress string `mapstructure:"dmx_sink_address" validate:"required"`

	CreatureStoreDSN  string `mapstructure:"creature_store_dsn" validate:"required"`
	RedisAddress      string `mapstructure:"redis_address"`
	CreatureCacheTTLS int    `mapstructure:"creature_cache_ttl_seconds"`

	// LocalPlayerCommand is the external binary transport.ExecPlayer shells
	// out to when audio_mode is "local" (spec §6 local audio device
	// collaborator).
	LocalPlayerCommand string `mapstructure:"local_player_command" validate:"required_if=AudioMode local"`
}

// Load reads configuration from the environment (optionally via an .env file
// pointed at by ENV_PATH, same convention as the teacher's InitConfig), fills
// in defaults, and validates the result.
func Load() (*Configuration, error) {
	v := viper.NewWithOptions(viper.KeyDelimiter("__"))
	v.AddConfigPath(".")
	v.SetConfigName(".env")
	v.SetConfigType("env")
	if path := os.Getenv("ENV_PATH"); path != "" {
		v.SetConfigFile(path)
	}
	v.AutomaticEnv()

	setDefaults(v)

	// A missing .env file is not fatal — env vars + defaults still apply.
	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	return FromViper(v)
}

// FromViper unmarshals and validates a Configuration from an already
// populated viper instance, split out so tests can build one without touching
// the filesystem or environment.
func FromViper(v *viper.Viper) (*Configuration, error) {
	var cfg Configuration
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVICE_NAME", "creature-server")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FILE_PATH", "")

	v.SetDefault("MS_PER_TICK", 1)
	v.SetDefault("AUDIO_MODE", string(AudioModeRtp))
	v.SetDefault("SOUND_FILE_LOCATION", "./sounds")
	v.SetDefault("RTP_FRAGMENT_PACKETS", false)
	v.SetDefault("ANIMATION_SCHEDULER_TYPE", string(SchedulerCooperative))

	v.SetDefault("RTP_PORT_RANGE_START", 16000)
	v.SetDefault("RTP_PORT_RANGE_END", 16100)

	v.SetDefault("DMX_SINK_ADDRESS", "127.0.0.1:5568")

	v.SetDefault("CREATURE_STORE_DSN", "file:creatures.db?cache=shared")
	v.SetDefault("REDIS_ADDRESS", "")
	v.SetDefault("CREATURE_CACHE_TTL_SECONDS", 300)

	v.SetDefault("LOCAL_PLAYER_COMMAND", "aplay")
}
