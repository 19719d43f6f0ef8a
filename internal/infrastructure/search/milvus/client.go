// Package milvus implements the shared vector backend of the similarity
// index.  Each embedding model gets its own collection, so vectors from
// different models never mix; searches run at strong consistency because the
// post-insert second search must observe concurrent writers.
package milvus

import (
	"context"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"

	"github.com/turtacn/EquityLens/internal/config"
	"github.com/turtacn/EquityLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/EquityLens/pkg/errors"
)

const connectTimeout = 10 * time.Second

// Client wraps the Milvus SDK connection together with the configured
// collection prefix.
type Client struct {
	mc     client.Client
	prefix string
	topK   int
	log    logging.Logger
}

// NewClient dials Milvus and verifies the connection.
func NewClient(ctx context.Context, cfg config.MilvusConfig, log logging.Logger) (*Client, error) {
	if cfg.Addr == "" {
		return nil, errors.New(errors.ErrCodeValidation, "milvus addr must not be empty")
	}
	if log == nil {
		log = logging.NewNopLogger()
	}

	dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	mc, err := client.NewClient(dialCtx, client.Config{
		Address: cfg.Addr,
		DBName:  cfg.DBName,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExternalService, "failed to connect to milvus")
	}

	log.Info("connected to milvus",
		logging.String("addr", cfg.Addr),
		logging.String("db", cfg.DBName),
	)

	prefix := cfg.CollectionPrefix
	if prefix == "" {
		prefix = "equitylens_"
	}
	topK := cfg.DefaultTopK
	if topK <= 0 {
		topK = 10
	}
	return &Client{mc: mc, prefix: prefix, topK: topK, log: log}, nil
}

// Close terminates the connection.
func (c *Client) Close() error {
	return c.mc.Close()
}
