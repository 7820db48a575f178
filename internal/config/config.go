package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	TransportHTTP = "http"
	TransportMQTT = "mqtt"
)

type Config struct {
	Env       string          `yaml:"env" env-default:"prod"`
	Log       LogConfig       `yaml:"log"`
	Sensor    SensorConfig    `yaml:"sensor"`
	Acquire   AcquireConfig   `yaml:"acquire"`
	Alert     AlertConfig     `yaml:"alert"`
	Store     StoreConfig     `yaml:"store"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Monitor   MonitorConfig   `yaml:"monitor"`
	Health    HealthConfig    `yaml:"health"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

type SensorConfig struct {
	Simulate bool `yaml:"simulate" env:"SENSOR_SIMULATE" env-default:"false"`
	// ClimateDevice is the IIO sysfs directory of the dht11 kernel driver.
	ClimateDevice string  `yaml:"climate_device" env-default:"/sys/bus/iio/devices/iio:device0"`
	SPIPort       string  `yaml:"spi_port" env-default:"SPI0.0"`
	SPISpeedHz    int64   `yaml:"spi_speed_hz" env-default:"1350000"`
	GasChannel    int     `yaml:"gas_channel" env-default:"0"`
	IndicatorPin  string  `yaml:"indicator_pin" env-default:"GPIO22"`
	FailureRate   float64 `yaml:"simulated_failure_rate" env-default:"0.1"`
}

type AcquireConfig struct {
	MaxAttempts int           `yaml:"max_attempts" env-default:"5"`
	Delay       time.Duration `yaml:"delay" env-default:"2s"`
	Multiplier  float64       `yaml:"multiplier" env-default:"1"`
}

type AlertConfig struct {
	Enabled   bool          `yaml:"enabled" env-default:"true"`
	Threshold float64       `yaml:"threshold" env-default:"30.0"`
	Cooldown  time.Duration `yaml:"cooldown" env-default:"1h"`
	Twilio    TwilioConfig  `yaml:"twilio"`
}

type TwilioConfig struct {
	AccountSID string `yaml:"account_sid" env:"TWILIO_ACCOUNT_SID"`
	AuthToken  string `yaml:"auth_token" env:"TWILIO_AUTH_TOKEN"`
	From       string `yaml:"from" env:"TWILIO_FROM"`
	To         string `yaml:"to" env:"TWILIO_TO"`
}

type StoreConfig struct {
	Path string `yaml:"path" env:"STORE_PATH" env-default:"sensor_data_encrypted.db"`
	Key  string `yaml:"key" env:"STORE_KEY" env-required:"true"`
}

type TelemetryConfig struct {
	Transport  string        `yaml:"transport" env:"TELEMETRY_TRANSPORT" env-default:"http"`
	URL        string        `yaml:"url" env-default:"https://api.thingspeak.com/update"`
	APIKey     string        `yaml:"api_key" env:"TELEMETRY_API_KEY"`
	ReadAPIKey string        `yaml:"read_api_key" env:"TELEMETRY_READ_API_KEY"`
	ChannelID  string        `yaml:"channel_id" env:"TELEMETRY_CHANNEL_ID"`
	FeedURL    string        `yaml:"feed_url" env-default:"https://api.thingspeak.com"`
	Timeout    time.Duration `yaml:"timeout" env-default:"5s"`
	MQTT       MQTTConfig    `yaml:"mqtt"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker" env-default:"tcp://mqtt3.thingspeak.com:1883"`
	ClientID string `yaml:"client_id" env:"MQTT_CLIENT_ID"`
	Username string `yaml:"username" env:"MQTT_USERNAME"`
	Password string `yaml:"password" env:"MQTT_PASSWORD"`
}

type MonitorConfig struct {
	Interval time.Duration `yaml:"interval" env-default:"15s"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled" env-default:"true"`
	Address string `yaml:"address" env:"HEALTH_ADDRESS" env-default:":8080"`
}

func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err.Error())
	}
	return cfg
}

// Load reads the YAML file at configPath (or CONFIG_PATH), after pulling an
// optional .env file into the environment.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}

	if configPath == "" {
		configPath = "config/config.yaml"
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", configPath)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return &cfg, nil
}

// Validate checks that every credential the loop needs is present. Dry runs
// never reach the SMS gateway or the telemetry endpoint, so they skip those.
func (c *Config) Validate(dryRun bool) error {
	var errs []error

	if c.Store.Key == "" {
		errs = append(errs, errors.New("store.key is required"))
	}
	if c.Acquire.MaxAttempts < 1 {
		errs = append(errs, errors.New("acquire.max_attempts must be >= 1"))
	}
	if c.Sensor.GasChannel < 0 || c.Sensor.GasChannel > 7 {
		errs = append(errs, fmt.Errorf("sensor.gas_channel %d out of range [0,7]", c.Sensor.GasChannel))
	}
	if c.Monitor.Interval <= 0 {
		errs = append(errs, errors.New("monitor.interval must be > 0"))
	}

	switch c.Telemetry.Transport {
	case TransportHTTP, TransportMQTT:
	default:
		errs = append(errs, fmt.Errorf("unknown telemetry transport %q", c.Telemetry.Transport))
	}

	if dryRun {
		return errors.Join(errs...)
	}

	if c.Telemetry.Transport == TransportHTTP && c.Telemetry.APIKey == "" {
		errs = append(errs, errors.New("telemetry.api_key is required"))
	}
	if c.Telemetry.Transport == TransportMQTT {
		if c.Telemetry.ChannelID == "" {
			errs = append(errs, errors.New("telemetry.channel_id is required for mqtt"))
		}
		if c.Telemetry.MQTT.ClientID == "" || c.Telemetry.MQTT.Password == "" {
			errs = append(errs, errors.New("telemetry.mqtt credentials are required"))
		}
	}

	if c.Alert.Enabled {
		tw := c.Alert.Twilio
		if tw.AccountSID == "" || tw.AuthToken == "" {
			errs = append(errs, errors.New("alert.twilio account_sid and auth_token are required"))
		}
		if tw.From == "" || tw.To == "" {
			errs = append(errs, errors.New("alert.twilio from and to numbers are required"))
		}
	}

	return errors.Join(errs...)
}
