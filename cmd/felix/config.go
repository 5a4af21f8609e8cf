package main

import (
	"io"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"

	yml "github.com/go-yaml/yaml"
)

// ConfigFileName is the on-disk config felix loads at startup, if present.
const ConfigFileName = "felix.yml"

// Config holds felix's tunable defaults. There are no command-line flags for
// these fields; ConfigFileName, if present, overrides the built-in defaults.
type Config struct {
	// TimeoutMS is a USB timeout in milliseconds. It is stored in and
	// printed from the config, but it is not applied: the fel transport
	// uses its own fixed timeouts.
	TimeoutMS int `koanf:"timeout_ms" yaml:"timeout_ms"`

	// OpenRetries, when greater than 0, makes Session.Open retry device
	// open with exponential backoff; 0 disables retry. It is not a retry
	// count: the retry loop gives up after about 5 seconds whatever the
	// value.
	OpenRetries int `koanf:"open_retries" yaml:"open_retries"`

	// Verbose enables hex-dumped request/response tracing on stderr.
	Verbose bool `koanf:"verbose" yaml:"verbose"`

	// NoColor disables ANSI coloring of the [FAIL]/[ OK ] markers.
	NoColor bool `koanf:"no_color" yaml:"no_color"`
}

// DefaultConfig returns felix's built-in defaults, the same values mkconf
// writes out.
func DefaultConfig() Config {
	return Config{
		TimeoutMS:   5000,
		OpenRetries: 3,
		Verbose:     false,
		NoColor:     false,
	}
}

var k = koanf.New(".")

// loadConfig seeds k with DefaultConfig, then overlays ConfigFileName if it
// exists, and returns the merged result.
func loadConfig() (Config, error) {
	def := DefaultConfig()
	if err := k.Load(structs.Provider(def, "koanf"), nil); err != nil {
		return def, err
	}
	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") { // file missing, who cares
			return def, err
		}
	}
	var c Config
	if err := k.Unmarshal("", &c); err != nil {
		return def, err
	}
	return c, nil
}

// writeYAML encodes c as YAML to w, in the same shape ConfigFileName is
// read back from.
func writeYAML(w io.Writer, c Config) error {
	return yml.NewEncoder(w).Encode(c)
}
