// Package config implements configuration loading for the DSS. It parses
// the recognized keys from spec.md §6.1 plus the ambient logging knobs,
// validating and injecting defaults after an unmarshal.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	defaultConnectString = "dbname=phobos host=localhost"
	defaultLogLevel      = "info"
	defaultLogFormat     = "json"
)

// Config is the validated, defaulted configuration used to open a Handle.
type Config struct {
	// ConnectString is the backend connection string passed to store.Open.
	ConnectString string

	// SupportedTapeModels is the list of tape medium models split from
	// the comma-separated tape_model.supported_list; the dss package
	// builds its model.Registry from it.
	SupportedTapeModels []string

	LogLevel  string
	LogFormat string
}

// New builds a *viper.Viper pre-bound to the recognized DSS keys and the
// supplied pflag.FlagSet, binding cobra flags into a shared viper
// instance before parsing.
func New(flags *pflag.FlagSet) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("DSS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("dss.connect_string", defaultConnectString)
	v.SetDefault("tape_model.supported_list", "")
	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("log.format", defaultLogFormat)

	if flags != nil {
		_ = v.BindPFlags(flags)
	}
	return v
}

// Load reads the bound keys out of v and returns a validated Config.
func Load(v *viper.Viper) (*Config, error) {
	c := &Config{
		ConnectString: v.GetString("dss.connect_string"),
		LogLevel:      v.GetString("log.level"),
		LogFormat:     v.GetString("log.format"),
	}
	if c.ConnectString == "" {
		c.ConnectString = defaultConnectString
	}

	raw := v.GetString("tape_model.supported_list")
	for _, m := range strings.Split(raw, ",") {
		m = strings.TrimSpace(m)
		if m != "" {
			c.SupportedTapeModels = append(c.SupportedTapeModels, m)
		}
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.ConnectString) == "" {
		return fmt.Errorf("config: dss.connect_string must not be empty")
	}
	return nil
}
