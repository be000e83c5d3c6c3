package config

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	// App mode & server
	Mode        string
	ServerAddr  string
	TLSCertFile string
	TLSKeyFile  string
	FlashSecret string

	// Storage
	StoreBackend string
	DataFile     string
	SeedDataFile bool

	// Logging
	LogLevel      string
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int

	// Kafka
	KafkaEnabled   bool
	KafkaBroker    string
	KafkaTopic     string
	KafkaGroupID   string
	KafkaPartition int
	KafkaReadTO    time.Duration
	KafkaWriteTO   time.Duration

	// Cassandra
	CassandraHost     string
	CassandraKeyspace string
	CassandraUsername string
	CassandraPassword string
	CassandraTimeout  time.Duration
	CassandraDC       string

	// Worker
	WorkerCount     int
	WorkerQueueSize int
}

// Init loads the config using Viper and returns it
func Init() *Config {
	// .env is optional; real environment variables win over it
	_ = godotenv.Load()

	viper.SetDefault("MODE", "server")
	viper.SetDefault("SERVER_ADDR", "0.0.0.0:5000")

	viper.SetDefault("STORE_BACKEND", "file")
	viper.SetDefault("DATA_FILE", "data.json")
	viper.SetDefault("SEED_DATA_FILE", true)

	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_MAX_SIZE_MB", 10)
	viper.SetDefault("LOG_MAX_BACKUPS", 3)
	viper.SetDefault("LOG_MAX_AGE_DAYS", 28)

	viper.SetDefault("KAFKA_ENABLED", false)
	viper.SetDefault("KAFKA_BROKER", "localhost:29092")
	viper.SetDefault("KAFKA_TOPIC", "post-events")
	viper.SetDefault("KAFKA_GROUP_ID", "mirror-group")
	viper.SetDefault("KAFKA_PARTITION", 0)
	viper.SetDefault("KAFKA_READ_TIMEOUT", "10s")
	viper.SetDefault("KAFKA_WRITE_TIMEOUT", "10s")

	viper.SetDefault("CASSANDRA_HOST", "localhost")
	viper.SetDefault("CASSANDRA_KEYSPACE", "jsonblog")
	viper.SetDefault("CASSANDRA_TIMEOUT", "10s")
	// Optional: TLS files, flash secret, Cassandra username/password/DC can be empty

	viper.SetDefault("WORKER_COUNT", 0)
	viper.SetDefault("WORKER_QUEUE_SIZE", 0)

	// Load env variables
	viper.AutomaticEnv()

	// Optional config file support
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	_ = viper.ReadInConfig() // ignore error if no file

	cfg := &Config{
		Mode:              viper.GetString("MODE"),
		ServerAddr:        viper.GetString("SERVER_ADDR"),
		TLSCertFile:       viper.GetString("TLS_CERT_FILE"),
		TLSKeyFile:        viper.GetString("TLS_KEY_FILE"),
		FlashSecret:       viper.GetString("FLASH_SECRET"),
		StoreBackend:      viper.GetString("STORE_BACKEND"),
		DataFile:          viper.GetString("DATA_FILE"),
		SeedDataFile:      viper.GetBool("SEED_DATA_FILE"),
		LogLevel:          viper.GetString("LOG_LEVEL"),
		LogFile:           viper.GetString("LOG_FILE"),
		LogMaxSizeMB:      viper.GetInt("LOG_MAX_SIZE_MB"),
		LogMaxBackups:     viper.GetInt("LOG_MAX_BACKUPS"),
		LogMaxAgeDays:     viper.GetInt("LOG_MAX_AGE_DAYS"),
		KafkaEnabled:      viper.GetBool("KAFKA_ENABLED"),
		KafkaBroker:       viper.GetString("KAFKA_BROKER"),
		KafkaTopic:        viper.GetString("KAFKA_TOPIC"),
		KafkaGroupID:      viper.GetString("KAFKA_GROUP_ID"),
		KafkaPartition:    viper.GetInt("KAFKA_PARTITION"),
		KafkaReadTO:       parseDuration(viper.GetString("KAFKA_READ_TIMEOUT"), 10*time.Second),
		KafkaWriteTO:      parseDuration(viper.GetString("KAFKA_WRITE_TIMEOUT"), 10*time.Second),
		CassandraHost:     viper.GetString("CASSANDRA_HOST"),
		CassandraKeyspace: viper.GetString("CASSANDRA_KEYSPACE"),
		CassandraUsername: viper.GetString("CASSANDRA_USERNAME"),
		CassandraPassword: viper.GetString("CASSANDRA_PASSWORD"),
		CassandraTimeout:  parseDuration(viper.GetString("CASSANDRA_TIMEOUT"), 10*time.Second),
		CassandraDC:       viper.GetString("CASSANDRA_DC"),
		WorkerCount:       viper.GetInt("WORKER_COUNT"),
		WorkerQueueSize:   viper.GetInt("WORKER_QUEUE_SIZE"),
	}

	if cfg.FlashSecret == "" {
		cfg.FlashSecret = randomSecret()
	}

	return cfg
}

func parseDuration(s string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

// randomSecret returns 16 random bytes, hex-encoded. Flash cookies signed with
// it do not survive a restart, which only drops unread notifications.
func randomSecret() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
