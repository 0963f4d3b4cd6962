// Package valkeyclient builds the process-wide store client.
package valkeyclient

import (
	"context"
	"errors"
	"strings"

	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/redisolar/internal/infra/config"
)

// New connects to the configured address. Addresses with a scheme are parsed
// as valkey:// or redis:// URLs.
func New(cfg config.ValkeyConfig) (valkey.Client, error) {
	opt, err := buildOptions(cfg)
	if err != nil {
		return nil, err
	}
	return valkey.NewClient(opt)
}

func buildOptions(cfg config.ValkeyConfig) (valkey.ClientOption, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return valkey.ClientOption{}, errors.New("valkey address is empty")
	}
	var (
		opt valkey.ClientOption
		err error
	)
	if strings.Contains(addr, "://") {
		opt, err = valkey.ParseURL(addr)
	} else {
		opt = valkey.ClientOption{InitAddress: []string{addr}}
	}
	if err != nil {
		return valkey.ClientOption{}, err
	}
	// Readings change constantly; client side caching would only serve stale rollups.
	opt.DisableCache = true
	if cfg.DialTimeout > 0 {
		opt.Dialer.Timeout = cfg.DialTimeout
	}
	return opt, nil
}

// Checker reports whether the store answers.
type Checker struct {
	client valkey.Client
}

// NewChecker wraps the client for health probes.
func NewChecker(client valkey.Client) *Checker {
	return &Checker{client: client}
}

// Check sends a PING.
func (c *Checker) Check(ctx context.Context) error {
	return c.client.Do(ctx, c.client.B().Ping().Build()).Error()
}
