// Package nats wraps connection management for the NATS collaborators.
package nats

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// ConnectionConfig holds configuration for a NATS connection
type ConnectionConfig struct {
	// URL is the NATS server URL (e.g., "nats://localhost:4222")
	URL string `yaml:"url"`

	// Name identifies this client to the server
	Name string `yaml:"name"`

	// MaxReconnects is the maximum number of reconnection attempts.
	// Use -1 for unlimited reconnects
	MaxReconnects int `yaml:"max_reconnects"`

	ReconnectWait time.Duration `yaml:"reconnect_wait"`

	// Timeout bounds the initial connect
	Timeout time.Duration `yaml:"timeout"`

	Token    string `yaml:"token"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// DefaultConnectionConfig returns a configuration with sensible defaults
func DefaultConnectionConfig(url string) *ConnectionConfig {
	return &ConnectionConfig{
		URL:           url,
		Name:          "daedalus-formproc",
		MaxReconnects: 10,
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// Connect establishes a connection to NATS. Connection state changes are
// logged on logger.
func Connect(ctx context.Context, config *ConnectionConfig, logger *zap.Logger) (*nats.Conn, error) {
	if config == nil {
		return nil, fmt.Errorf("connection config cannot be nil")
	}
	if config.URL == "" {
		return nil, fmt.Errorf("NATS URL cannot be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []nats.Option{
		nats.Name(config.Name),
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.Timeout(config.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			logger.Debug("NATS connection closed")
		}),
	}

	if config.Token != "" {
		opts = append(opts, nats.Token(config.Token))
	} else if config.Username != "" && config.Password != "" {
		opts = append(opts, nats.UserInfo(config.Username, config.Password))
	}

	type result struct {
		conn *nats.Conn
		err  error
	}
	resultCh := make(chan result, 1)

	go func() {
		conn, err := nats.Connect(config.URL, opts...)
		resultCh <- result{conn: conn, err: err}
	}()

	select {
	case <-ctx.Done():
		// The dial may still succeed; close it once it does.
		go func() {
			if res := <-resultCh; res.conn != nil {
				res.conn.Close()
			}
		}()
		return nil, fmt.Errorf("connection cancelled: %w", ctx.Err())
	case res := <-resultCh:
		if res.err != nil {
			return nil, fmt.Errorf("failed to connect to NATS: %w", res.err)
		}
		return res.conn, nil
	}
}

// Close drains the connection, falling back to a hard close.
func Close(conn *nats.Conn) error {
	if conn == nil {
		return nil
	}
	if err := conn.Drain(); err != nil {
		conn.Close()
		return fmt.Errorf("error draining connection: %w", err)
	}
	return nil
}

// IsConnected checks if the connection is active
func IsConnected(conn *nats.Conn) bool {
	return conn != nil && conn.IsConnected()
}
