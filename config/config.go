// Package config defines the pipelinectl process's flag- and YAML-driven
// configuration, adapted from the teacher's config package: flag.*Var
// registers each setting against the top-level flag.CommandLine, an
// optional YAML file can override them, and Parse resolves derived fields
// once both have been applied.
package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	defaultAddress               = ":9990"
	defaultBodyChannelCapacity   = 32
	defaultIdleInterval          = 5 * time.Millisecond
	defaultMaxConcurrency        = 64
	defaultMaxQueueSize          = 256
	defaultAdmissionTimeout      = 0
	defaultBreakerFailures       = 5
	defaultBreakerTimeout        = 10 * time.Second
	defaultBreakerHalfOpenProbes = 1
	defaultMetricsNamespace      = "pipeline"
)

// Config is pipelinectl's full set of runtime settings.
type Config struct {
	ConfigFile string `yaml:"-"`

	// transport
	Address string `yaml:"address"`

	// body streaming
	BodyChannelCapacity int `yaml:"body-channel-capacity"`

	// reactor
	IdleInterval time.Duration `yaml:"-"`
	IdleIntervalString string `yaml:"idle-interval"`

	// server-side admission gate
	EnableAdmission bool          `yaml:"enable-admission"`
	MaxConcurrency  int           `yaml:"max-concurrency"`
	MaxQueueSize    int           `yaml:"max-queue-size"`
	AdmissionTimeout time.Duration `yaml:"-"`
	AdmissionTimeoutString string  `yaml:"admission-timeout"`

	// circuit breaker
	EnableBreaker         bool          `yaml:"enable-breaker"`
	BreakerFailures       uint          `yaml:"breaker-failures"`
	BreakerTimeout        time.Duration `yaml:"-"`
	BreakerTimeoutString  string        `yaml:"breaker-timeout"`
	BreakerHalfOpenProbes uint          `yaml:"breaker-half-open-probes"`

	// metrics
	EnableMetrics   bool   `yaml:"enable-metrics"`
	MetricsListener string `yaml:"metrics-listener"`
	MetricsNamespace string `yaml:"metrics-namespace"`

	// logging
	ApplicationLogLevelString string      `yaml:"application-log-level"`
	ApplicationLogLevel       logrus.Level `yaml:"-"`
	ApplicationLogPrefix      string      `yaml:"application-log-prefix"`
}

// NewConfig registers every flag against flag.CommandLine and returns the
// Config they populate. Call Parse after flag.Parse (or let Parse call it
// for you) to resolve derived fields.
func NewConfig() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.ConfigFile, "config-file", "", "path to a YAML file overriding these flags")
	flag.StringVar(&cfg.Address, "address", defaultAddress, "address the pipeline transport listens on or dials")
	flag.IntVar(&cfg.BodyChannelCapacity, "body-channel-capacity", defaultBodyChannelCapacity, "buffered chunk capacity for streamed message bodies")
	flag.StringVar(&cfg.IdleIntervalString, "idle-interval", defaultIdleInterval.String(), "backoff between reactor ticks that made no progress")
	flag.BoolVar(&cfg.EnableAdmission, "enable-admission", false, "bound concurrent service execution on the server pipeline")
	flag.IntVar(&cfg.MaxConcurrency, "max-concurrency", defaultMaxConcurrency, "admission gate concurrency limit")
	flag.IntVar(&cfg.MaxQueueSize, "max-queue-size", defaultMaxQueueSize, "admission gate queue size beyond the concurrency limit")
	flag.StringVar(&cfg.AdmissionTimeoutString, "admission-timeout", durationOrZero(defaultAdmissionTimeout), "time a request may wait for an admission slot before failing, 0 disables the timeout")
	flag.BoolVar(&cfg.EnableBreaker, "enable-breaker", false, "trip a circuit breaker around the service after repeated failures")
	flag.UintVar(&cfg.BreakerFailures, "breaker-failures", defaultBreakerFailures, "consecutive service failures before the breaker opens")
	flag.StringVar(&cfg.BreakerTimeoutString, "breaker-timeout", defaultBreakerTimeout.String(), "how long the breaker stays open before a half-open probe")
	flag.UintVar(&cfg.BreakerHalfOpenProbes, "breaker-half-open-probes", defaultBreakerHalfOpenProbes, "requests allowed through while half-open")
	flag.BoolVar(&cfg.EnableMetrics, "enable-metrics", false, "expose Prometheus metrics")
	flag.StringVar(&cfg.MetricsListener, "metrics-listener", ":9911", "address the Prometheus handler listens on")
	flag.StringVar(&cfg.MetricsNamespace, "metrics-namespace", defaultMetricsNamespace, "Prometheus metric namespace")
	flag.StringVar(&cfg.ApplicationLogLevelString, "application-log-level", "INFO", "application log level")
	flag.StringVar(&cfg.ApplicationLogPrefix, "application-log-prefix", "", "prefix applied to every application log line")

	return cfg
}

func durationOrZero(d time.Duration) string {
	if d == 0 {
		return "0"
	}
	return d.String()
}

// Parse calls flag.Parse, applies an optional YAML override file, and
// resolves every derived field. Grounded on the teacher's Config.Parse.
func (c *Config) Parse() error {
	flag.Parse()

	if len(flag.Args()) != 0 {
		return fmt.Errorf("invalid arguments: %v", flag.Args())
	}

	if c.ConfigFile != "" {
		data, err := os.ReadFile(c.ConfigFile)
		if err != nil {
			return fmt.Errorf("invalid config file: %w", err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("unmarshalling config file: %w", err)
		}
	}

	level, err := logrus.ParseLevel(c.ApplicationLogLevelString)
	if err != nil {
		return fmt.Errorf("invalid application-log-level: %w", err)
	}
	c.ApplicationLogLevel = level

	idle, err := time.ParseDuration(c.IdleIntervalString)
	if err != nil {
		return fmt.Errorf("invalid idle-interval: %w", err)
	}
	c.IdleInterval = idle

	admissionTimeout, err := time.ParseDuration(c.AdmissionTimeoutString)
	if err != nil {
		return fmt.Errorf("invalid admission-timeout: %w", err)
	}
	c.AdmissionTimeout = admissionTimeout

	breakerTimeout, err := time.ParseDuration(c.BreakerTimeoutString)
	if err != nil {
		return fmt.Errorf("invalid breaker-timeout: %w", err)
	}
	c.BreakerTimeout = breakerTimeout

	return nil
}
