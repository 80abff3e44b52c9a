package hci

import (
	"time"

	"github.com/gd-bt/hci/hal"
)

// defaultCommandTimeout resolves the teacher's own internal 10s-vs-3s
// watchdog inconsistency (see DESIGN.md) in favor of a single configurable
// value.
const defaultCommandTimeout = 2000 * time.Millisecond

type config struct {
	transport      hal.HAL
	commandTimeout time.Duration
	aclQueueDepth  int
	errorHandler   func(error)
	log            Logger
	bondCachePath  string
}

func defaultConfig() *config {
	return &config{
		commandTimeout: defaultCommandTimeout,
		aclQueueDepth:  DefaultAclQueueDepth,
		log:            GetLogger(),
	}
}

// Option configures an HCI instance at construction time.
type Option func(*config) error

// WithTransport supplies the HAL adapter the instance drives. Required —
// New fails without one.
func WithTransport(t hal.HAL) Option {
	return func(c *config) error {
		c.transport = t
		return nil
	}
}

// WithCommandTimeout overrides the watchdog timeout armed while a command
// is outstanding. Default 2s.
func WithCommandTimeout(d time.Duration) Option {
	return func(c *config) error {
		c.commandTimeout = d
		return nil
	}
}

// WithACLQueueDepth overrides the bound on the ACL bidirectional queue.
// Default 3, matching the upstream literal this module generalized into a
// parameter.
func WithACLQueueDepth(depth int) Option {
	return func(c *config) error {
		c.aclQueueDepth = depth
		return nil
	}
}

// WithErrorHandler installs the sink for recoverable transport errors
// (send failures). Protocol violations and timeouts never reach this —
// they go through fatalf instead.
func WithErrorHandler(h func(error)) Option {
	return func(c *config) error {
		c.errorHandler = h
		return nil
	}
}

// WithLogger overrides the logger this instance and its components use.
func WithLogger(l Logger) Option {
	return func(c *config) error {
		c.log = l
		return nil
	}
}

// WithBondCachePath enables on-disk persistence of LE long term keys
// keyed by peer address, loaded at Start and flushed on every update.
func WithBondCachePath(path string) Option {
	return func(c *config) error {
		c.bondCachePath = path
		return nil
	}
}
