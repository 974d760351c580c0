package database

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"go.uber.org/zap"

	"matribhumi/api/config"
	"matribhumi/api/logger"
)

type ClickHouseClient struct {
	Conn clickhouse.Conn
	log  *logger.Logger
}

func NewClickHouseDB(cfg config.ClickHouseConfig, log *logger.Logger) (*ClickHouseClient, error) {
	options := &clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.NativePort)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		ClientInfo: clickhouse.ClientInfo{
			Products: []struct {
				Name    string
				Version string
			}{{Name: "matribhumi-api", Version: "1.0.0"}},
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		DialTimeout: time.Second * 5,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse via Native TCP: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	log.Info("connected to ClickHouse", zap.String("addr", options.Addr[0]))
	return &ClickHouseClient{Conn: conn, log: log}, nil
}

// EnsureSchema creates the events table when it does not exist yet.
func (c *ClickHouseClient) EnsureSchema(ctx context.Context) error {
	err := c.Conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS analytics_events (
			event_id           String,
			event_type         LowCardinality(String),
			occurred_at        DateTime64(3, 'UTC'),
			path               String,
			package_id         String,
			booking_id         String,
			origin_fingerprint String,
			user_agent         String
		)
		ENGINE = MergeTree
		PARTITION BY toYYYYMM(occurred_at)
		ORDER BY (event_type, occurred_at)
	`)
	if err != nil {
		return fmt.Errorf("failed to create analytics_events table: %w", err)
	}
	return nil
}

func (c *ClickHouseClient) Close() {
	if c.Conn != nil {
		if err := c.Conn.Close(); err != nil {
			c.log.WithError(err).Warn("error closing ClickHouse connection")
			return
		}
		c.log.Info("ClickHouse connection closed")
	}
}
