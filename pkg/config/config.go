package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
)

type ServerConfig struct {
	Port                string `mapstructure:"port"`
	ReadTimeoutSeconds  int    `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `mapstructure:"write_timeout_seconds"`
	MaxWorkers          int    `mapstructure:"max_workers"`
}

type GeoServerConfig struct {
	BaseUrl  string `mapstructure:"base_url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type KafkaConfig struct {
	BootstrapServers string `mapstructure:"bootstrap_servers"`
	Topic            string `mapstructure:"topic"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Dbname   string `mapstructure:"dbname"`
}

type MongoConfig struct {
	Url      string `mapstructure:"url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Dbname   string `mapstructure:"dbname"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	Db       int    `mapstructure:"db"`
}

type RasterConfig struct {
	RedBand   int `mapstructure:"red_band"`
	GreenBand int `mapstructure:"green_band"`
	NirBand   int `mapstructure:"nir_band"`
}

type AuditConfig struct {
	CdcEnabled bool `mapstructure:"cdc_enabled"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
	Dir   string `mapstructure:"dir"`
}

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	GeoServer GeoServerConfig `mapstructure:"geoserver"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Mongo     MongoConfig     `mapstructure:"mongo"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Raster    RasterConfig    `mapstructure:"raster"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

func NewConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.SetDefault("server.port", "8000")
	v.SetDefault("server.read_timeout_seconds", 30)
	v.SetDefault("server.write_timeout_seconds", 300)
	v.SetDefault("server.max_workers", 3)
	v.SetDefault("geoserver.base_url", "http://localhost:8080/geoserver")
	v.SetDefault("geoserver.username", "admin")
	v.SetDefault("geoserver.password", "geoserver")
	v.SetDefault("kafka.topic", "image-processing-status")
	v.SetDefault("raster.red_band", 4)
	v.SetDefault("raster.green_band", 3)
	v.SetDefault("raster.nir_band", 8)
	v.SetDefault("logging.level", "info")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, eris.Wrap(err, "read config file")
	}

	var conf Config
	if err := v.Unmarshal(&conf); err != nil {
		return nil, eris.Wrap(err, "unmarshal config")
	}

	return &conf, nil
}

// PostgresUrl builds the connection string the same way for the pool and the listener.
func (c *Config) PostgresUrl() string {
	return "postgres://" + c.Postgres.Username + ":" + c.Postgres.Password + "@" + c.Postgres.Host + "/" + c.Postgres.Dbname + "?sslmode=disable"
}
