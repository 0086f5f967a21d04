package qdrant

import (
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// Config configures the Qdrant gRPC client.
type Config struct {
	Host   string `default:"localhost"`
	Port   int    `default:"6334"`
	APIKey string `split_words:"true"`
	UseTLS bool   `split_words:"true"`
}

// New creates a Qdrant client. The client is owned by the caller and must be
// closed on shutdown.
func (c *Config) New() (*qdrant.Client, error) {
	host := c.Host
	if host == "" {
		host = "localhost"
	}
	port := c.Port
	if port == 0 {
		port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: c.APIKey,
		UseTLS: c.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client for %s:%d: %w", host, port, err)
	}
	return client, nil
}
