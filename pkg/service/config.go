package service

import (
	"errors"
	"fmt"
	"os"
	"time"
)

// DefaultPort is the port a Service listens on when none is configured.
const DefaultPort = 8081

// ErrConfiguration marks an invalid service configuration. All validation
// failures wrap it.
var ErrConfiguration = errors.New("invalid configuration")

// Config holds the settings owned by one Service instance. Build it once and
// pass it to New, which validates it; invalid combinations (secure mode
// without key or certificate) are rejected before a socket is ever opened.
type Config struct {
	// Port to listen on, always on the loopback interface.
	Port int

	// Trace enables the diagnostic log of request/response exchanges.
	Trace bool

	// Delay is artificial latency added before each response body. It blocks
	// the single serving worker, so overlapping requests queue behind it.
	Delay time.Duration

	// Secure serves TLS using KeyFile and CertFile.
	Secure bool

	// KeyFile and CertFile are paths to the TLS private key and certificate.
	// Both must exist when Secure is set.
	KeyFile  string
	CertFile string
}

// DefaultConfig returns the configuration of a plain HTTP stub on DefaultPort.
func DefaultConfig() *Config {
	return &Config{Port: DefaultPort}
}

// Validate checks the configuration for invalid values and combinations.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrConfiguration, c.Port)
	}
	if c.Delay < 0 {
		return fmt.Errorf("%w: delay cannot be negative", ErrConfiguration)
	}
	if c.Secure {
		if err := requireFile("key", c.KeyFile); err != nil {
			return err
		}
		if err := requireFile("certificate", c.CertFile); err != nil {
			return err
		}
	}
	return nil
}

func requireFile(kind, path string) error {
	if path == "" {
		return fmt.Errorf("%w: secure mode enabled but no %s file given", ErrConfiguration, kind)
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: %s file %q does not exist", ErrConfiguration, kind, path)
	}
	return nil
}

// Scheme returns the URL scheme matching the security mode.
func (c *Config) Scheme() string {
	if c.Secure {
		return "https"
	}
	return "http"
}
