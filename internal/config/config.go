package config

import (
	"flag"
	"net"
	"os"
	"time"

	"codeberg.org/halvor/sunmon/internal/errors"
	"github.com/spf13/viper"
)

const (
	DefaultUsername       = "admin"
	DefaultPassword       = "admin"
	DefaultUpdateInterval = 30
	MinUpdateInterval     = 10
	MaxUpdateInterval     = 3600
	DefaultLogLevel       = "info"
	DefaultDatabase       = "/var/lib/sunmon/sunmon.db"
)

// Device holds the connection settings for one inverter.
type Device struct {
	Host           string `mapstructure:"host"`
	Username       string `mapstructure:"username"`
	Password       string `mapstructure:"password"`
	UpdateInterval int    `mapstructure:"update_interval"`
}

// ID returns the identity under which the device's state is kept.
func (d Device) ID() string {
	return d.Host
}

// Interval returns the configured power/energy refresh interval.
func (d Device) Interval() time.Duration {
	return time.Duration(d.UpdateInterval) * time.Second
}

// Influx holds the optional InfluxDB sink settings.
type Influx struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Token   string `mapstructure:"token"`
	Org     string `mapstructure:"org"`
	Bucket  string `mapstructure:"bucket"`
}

type Config struct {
	LogLevel string   `mapstructure:"log_level"`
	Database string   `mapstructure:"database"`
	Debug    bool     `mapstructure:"debug"`
	Verbose  bool     `mapstructure:"verbose"`
	DumpDir  string   `mapstructure:"dump_dir"`
	Devices  []Device `mapstructure:"device"`
	Influx   Influx   `mapstructure:"influx"`
}

func Load() (*Config, error) {
	errFactory := errors.New()
	config := &Config{}

	// Define flags
	fs := flag.NewFlagSet("sunmon", flag.ContinueOnError)
	debugFlag := fs.Bool("debug", false, "Enable debugging mode")
	verboseFlag := fs.Bool("verbose", false, "Enable verbose logging")
	logLevelFlag := fs.String("log-level", "", "Log level (debug, info, warning, error)")
	dumpFlag := fs.String("dump", "", "Write each device's raw status page to this directory and exit")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidArgument, err)
	}

	v := viper.New()
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("database", DefaultDatabase)

	// Load configuration from file
	if configPath := os.Getenv("SUNMON_CONFIG"); configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("sunmon.conf")
		v.SetConfigType("toml")
		v.AddConfigPath("/etc")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	// Override config file values with command line flags
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "debug":
			v.Set("debug", *debugFlag)
		case "verbose":
			v.Set("verbose", *verboseFlag)
		case "log-level":
			v.Set("log_level", *logLevelFlag)
		case "dump":
			v.Set("dump_dir", *dumpFlag)
		}
	})

	// Unmarshal the configuration
	if err := v.Unmarshal(config); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) applyDefaults() {
	for i := range c.Devices {
		d := &c.Devices[i]
		if d.Username == "" && d.Password == "" {
			// Factory credentials; the device frequently ships unchanged.
			d.Username = DefaultUsername
			d.Password = DefaultPassword
		}
		if d.UpdateInterval == 0 {
			d.UpdateInterval = DefaultUpdateInterval
		}
	}
}

// Validate rejects malformed configuration before any polling starts.
func (c *Config) Validate() error {
	errFactory := errors.New()

	switch c.LogLevel {
	case "debug", "info", "warning", "warn", "error":
	default:
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	if len(c.Devices) == 0 {
		return errFactory.New(errors.ErrNoDevices)
	}

	for _, d := range c.Devices {
		if err := d.Validate(); err != nil {
			return err
		}
	}

	if c.Influx.Enabled && c.Influx.URL == "" {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "influx sink enabled without url")
	}

	return nil
}

// Validate checks a single device block.
func (d Device) Validate() error {
	errFactory := errors.New()

	ip := net.ParseIP(d.Host)
	if ip == nil || ip.To4() == nil {
		return errFactory.WithData(errors.ErrInvalidHost, d.Host)
	}

	if d.Username == "" || d.Password == "" {
		return errFactory.WithData(errors.ErrMissingCredentials, d.Host)
	}

	if d.UpdateInterval < MinUpdateInterval || d.UpdateInterval > MaxUpdateInterval {
		return errFactory.WithData(errors.ErrInvalidInterval, d.UpdateInterval)
	}

	return nil
}
