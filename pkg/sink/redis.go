// Package sink publishes readings to Redis.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/roffe/gobs1200"
	"github.com/sirupsen/logrus"
)

// Message is the JSON document published for one poll of one unit.
type Message struct {
	Time     time.Time        `json:"time"`
	Unit     bs1200.UnitID    `json:"unit"`
	Readings []bs1200.Reading `json:"readings"`
	Status   *Status          `json:"status,omitempty"`
}

type Status struct {
	FanFault     bool   `json:"fan_fault"`
	Temperatures [3]int `json:"temperatures"`
}

func NewStatus(s bs1200.SystemStatus) *Status {
	return &Status{FanFault: s.FanFault(), Temperatures: s.Temperatures}
}

// HistoryKey is the list holding the most recent messages of unit.
func HistoryKey(unit bs1200.UnitID) string {
	return fmt.Sprintf("bs1200:%d:readings", unit)
}

type Options struct {
	Addr     string
	Password string
	DB       int
	Channel  string
	History  int64 // messages kept per unit, 0 disables the list
}

type Publisher struct {
	client  redis.UniversalClient
	channel string
	history int64
	log     *logrus.Entry
}

// NewPublisher connects and pings the server.
func NewPublisher(ctx context.Context, opts Options, log *logrus.Logger) (*Publisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", opts.Addr, err)
	}
	return NewPublisherWithClient(client, opts, log), nil
}

func NewPublisherWithClient(client redis.UniversalClient, opts Options, log *logrus.Logger) *Publisher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Publisher{
		client:  client,
		channel: opts.Channel,
		history: opts.History,
		log:     log.WithField("redis", opts.Channel),
	}
}

// Publish sends m on the pub/sub channel and appends it to the unit's
// history list.
func (p *Publisher) Publish(ctx context.Context, m Message) error {
	b, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal readings: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, b).Err(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	if p.history <= 0 {
		return nil
	}
	key := HistoryKey(m.Unit)
	pipe := p.client.TxPipeline()
	pipe.LPush(ctx, key, b)
	pipe.LTrim(ctx, key, 0, p.history-1)
	if _, err := pipe.Exec(ctx); err != nil {
		p.log.WithError(err).Warnf("append %s", key)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.client.Close()
}
