package settings

import (
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const envPrefix = "THUMB"

// Load reads the YAML file at path, applies THUMB_* environment overrides
// and fills unset fields with defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields the service cannot start without.
func (c *Config) Validate() error {
	if len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers is required")
	}
	if c.Kafka.Topic == "" {
		return errors.New("kafka.topic is required")
	}
	switch c.Database.Driver {
	case "postgres", "mongodb":
	default:
		return errors.Errorf("database.driver %q is not supported", c.Database.Driver)
	}
	if c.HotKey.Decay <= 0 || c.HotKey.Decay >= 1 {
		return errors.Errorf("hot_key.decay must be in (0, 1), got %v", c.HotKey.Decay)
	}
	if _, err := c.Schedule.Location(); err != nil {
		return err
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return errors.Errorf("tracing.sample_ratio must be in [0, 1], got %v", c.Tracing.SampleRatio)
	}
	return nil
}

// Location resolves TimeZone, the zone partition dates are computed in.
func (s Schedule) Location() (*time.Location, error) {
	if s.TimeZone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(s.TimeZone)
	if err != nil {
		return nil, errors.Wrapf(err, "schedule.time_zone %q", s.TimeZone)
	}
	return loc, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	v.SetDefault("logger.log_level", "info")
	v.SetDefault("logger.file_log_name", "./storages/logs/thumb.log")
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.max_size", 100)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "thumb-topic")
	v.SetDefault("kafka.group_id", "thumb-sync")
	v.SetDefault("kafka.timeout", 5)
	v.SetDefault("kafka.max_retries", 3)
	v.SetDefault("kafka.retry_backoff", 100)
	v.SetDefault("kafka.consumer_batch_size", 1000)
	v.SetDefault("kafka.consumer_batch_interval", 10000)
	v.SetDefault("kafka.emit_queue_size", 1024)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "thumb")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 10)

	v.SetDefault("mongodb.host", "localhost")
	v.SetDefault("mongodb.port", 27017)
	v.SetDefault("mongodb.database", "thumb")
	v.SetDefault("mongodb.timeout", 10)

	v.SetDefault("hot_key.k", 100)
	v.SetDefault("hot_key.width", 100000)
	v.SetDefault("hot_key.depth", 5)
	v.SetDefault("hot_key.decay", 0.92)
	v.SetDefault("hot_key.min_count", 10)
	v.SetDefault("hot_key.eviction_capacity", 4096)
	v.SetDefault("hot_key.stripe_size", 64)
	v.SetDefault("hot_key.drain_interval", 1000)

	v.SetDefault("schedule.sweep_cron", "0 2 * * *")
	v.SetDefault("schedule.decay_interval", 20)
	v.SetDefault("schedule.time_zone", "Local")

	v.SetDefault("thumb.key_prefix", "thumb")

	v.SetDefault("snowflake_node.config.epoch", 1704067200000)
	v.SetDefault("snowflake_node.config.node", 10)
	v.SetDefault("snowflake_node.config.step", 12)
	v.SetDefault("snowflake_node.worker_id", 1)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "go-thumb")
	v.SetDefault("tracing.sample_ratio", 1.0)
}
