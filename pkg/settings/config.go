package settings

type Config struct {
	Server        Server        `mapstructure:"server"`
	Logger        Logger        `mapstructure:"logger"`
	Redis         Redis         `mapstructure:"redis"`
	Kafka         Kafka         `mapstructure:"kafka"`
	Database      Database      `mapstructure:"database"`
	MongoDB       MongoDB       `mapstructure:"mongodb"`
	HotKey        HotKey        `mapstructure:"hot_key"`
	Schedule      Schedule      `mapstructure:"schedule"`
	Thumb         Thumb         `mapstructure:"thumb"`
	SnowflakeNode SnowflakeNode `mapstructure:"snowflake_node"`
	Tracing       Tracing       `mapstructure:"tracing"`
}

// Server is the configuration for the server
type Server struct {
	Mode string `mapstructure:"mode"`
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Database is the configuration for the durable count store.
// Driver selects the applier: "postgres" or "mongodb".
type Database struct {
	Driver          string `mapstructure:"driver"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // Seconds
}

// MongoDB is the configuration for MongoDB
type MongoDB struct {
	Host            string `mapstructure:"host"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"`
	ReplicaSet      string `mapstructure:"replica_set"`
	MaxPoolSize     uint64 `mapstructure:"max_pool_size"`
	MinPoolSize     uint64 `mapstructure:"min_pool_size"`
	MaxConnIdleTime uint64 `mapstructure:"max_conn_idle_time"`
	Port            int    `mapstructure:"port"`
	Timeout         int    `mapstructure:"timeout"`
}

// Logger is the configuration for the logger
type Logger struct {
	LogLevel    string `mapstructure:"log_level"`
	FileLogName string `mapstructure:"file_log_name"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAge      int    `mapstructure:"max_age"`
	MaxSize     int    `mapstructure:"max_size"`
	Compress    bool   `mapstructure:"compress"`
}

// Redis is the configuration for Redis
type Redis struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Password        string `mapstructure:"password"`
	Database        int    `mapstructure:"database"`
	PoolSize        int    `mapstructure:"pool_size"`
	MinIdleConns    int    `mapstructure:"min_idle_conns"`
	PoolTimeout     int    `mapstructure:"pool_timeout"`
	DialTimeout     int    `mapstructure:"dial_timeout"`
	ReadTimeout     int    `mapstructure:"read_timeout"`
	WriteTimeout    int    `mapstructure:"write_timeout"`
	MaxRetries      int    `mapstructure:"max_retries"`
	MaxRetryBackoff int    `mapstructure:"max_retry_backoff"`
	MinRetryBackoff int    `mapstructure:"min_retry_backoff"`
}

// Kafka is the configuration for Kafka
type Kafka struct {
	Brokers               []string `mapstructure:"brokers"`
	Topic                 string   `mapstructure:"topic"`
	GroupID               string   `mapstructure:"group_id"`
	FlushFrequency        int      `mapstructure:"flush_frequency"`         // Milliseconds
	FlushBytes            int      `mapstructure:"flush_bytes"`             // Bytes
	MaxMessageBytes       int      `mapstructure:"max_message_bytes"`       // Bytes
	Timeout               int      `mapstructure:"timeout"`                 // Seconds
	MaxRetries            int      `mapstructure:"max_retries"`             // Number of retries
	RetryBackoff          int      `mapstructure:"retry_backoff"`           // Milliseconds
	MaxProcessingTime     int      `mapstructure:"max_processing_time"`     // Milliseconds
	ConsumerBatchSize     int      `mapstructure:"consumer_batch_size"`     // Number of messages
	ConsumerBatchInterval int      `mapstructure:"consumer_batch_interval"` // Milliseconds
	EmitQueueSize         int      `mapstructure:"emit_queue_size"`         // Number of events
}

// HotKey is the configuration for the hot-key estimator
type HotKey struct {
	K                int     `mapstructure:"k"`
	Width            int     `mapstructure:"width"`
	Depth            int     `mapstructure:"depth"`
	Decay            float64 `mapstructure:"decay"`
	MinCount         uint32  `mapstructure:"min_count"`
	EvictionCapacity int     `mapstructure:"eviction_capacity"`
	SeededRows       bool    `mapstructure:"seeded_rows"`
	StripeSize       int     `mapstructure:"stripe_size"`
	DrainInterval    int     `mapstructure:"drain_interval"` // Milliseconds
}

// Schedule is the configuration for periodic jobs
type Schedule struct {
	SweepCron     string `mapstructure:"sweep_cron"`
	DecayInterval int    `mapstructure:"decay_interval"` // Seconds
	TimeZone      string `mapstructure:"time_zone"`
}

// Thumb is the configuration for the toggle key namespace
type Thumb struct {
	KeyPrefix string `mapstructure:"key_prefix"`
}

type Snowflake struct {
	Epoch     int64 `mapstructure:"epoch"`
	Node      uint8 `mapstructure:"node"`
	Step      uint8 `mapstructure:"step"`
	TotalBits uint8 `mapstructure:"total_bits"`
}

type SnowflakeNode struct {
	Config   Snowflake `mapstructure:"config"`
	WorkerID int64     `mapstructure:"worker_id"`
}

// Tracing is the configuration for OpenTelemetry tracing. Empty Endpoint
// disables export.
type Tracing struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}
