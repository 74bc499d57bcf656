package rpc

import (
	"context"
	"math/rand"
	"net"
	"strings"
	"time"
)

// Dialer connects to a host with retry backoff and waits for its
// initialize announcement before handing back a live Client.
type Dialer struct {
	Network string
	Address string
	Config  Config

	rng *rand.Rand
}

func NewDialer(network, address string, cfg Config) (*Dialer, error) {
	if strings.TrimSpace(address) == "" {
		return nil, ErrAddressRequired
	}
	if strings.TrimSpace(network) == "" {
		network = "tcp"
	}
	return &Dialer{
		Network: network,
		Address: address,
		Config:  cfg.WithDefaults(),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Dial keeps trying until a connection is established and initialized,
// the attempt budget runs out, or ctx is cancelled.
func (d *Dialer) Dial(ctx context.Context) (*Client, error) {
	var attempt int
	for {
		attempt++
		client, err := d.dialOnce(ctx)
		if err == nil {
			return client, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !d.shouldRetry(attempt) {
			return nil, err
		}
		if err := d.sleepBackoff(ctx, attempt); err != nil {
			return nil, err
		}
	}
}

func (d *Dialer) dialOnce(ctx context.Context) (*Client, error) {
	dialer := net.Dialer{Timeout: d.Config.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, d.Network, d.Address)
	if err != nil {
		return nil, err
	}

	client := NewClient(conn, d.Config)
	readyCtx, cancel := context.WithTimeout(ctx, d.Config.InitializeTimeout)
	defer cancel()
	if err := client.WaitReady(readyCtx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func (d *Dialer) shouldRetry(attempt int) bool {
	if d.Config.MaxConnectAttempts <= 0 {
		return true
	}
	return attempt < d.Config.MaxConnectAttempts
}

func (d *Dialer) sleepBackoff(ctx context.Context, attempt int) error {
	delay := NextBackoffDelay(d.Config.Backoff, attempt, d.rng)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
