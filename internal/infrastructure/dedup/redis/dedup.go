package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/rueidis"

	"github.com/gfaraujo/normabot/internal/core/ports"
)

const (
	keyPrefix  = "normabot:msg:"
	defaultTTL = time.Hour
)

// Deduper remembers WhatsApp message ids so webhook redeliveries are
// processed once. SET NX makes the check-and-mark a single atomic step.
type Deduper struct {
	client rueidis.Client
	ttl    time.Duration
}

func New(address string, ttl time.Duration) (*Deduper, error) {
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress: []string{address},
	})
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return NewWithClient(client, ttl), nil
}

func NewWithClient(client rueidis.Client, ttl time.Duration) *Deduper {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Deduper{client: client, ttl: ttl}
}

var _ ports.MessageDeduper = (*Deduper)(nil)

// Seen marks the id and reports whether it had been marked before. A nil
// reply from SET NX means the key already existed.
func (d *Deduper) Seen(ctx context.Context, messageID string) (bool, error) {
	cmd := d.client.B().Set().
		Key(keyPrefix + messageID).
		Value("1").
		Nx().
		Ex(d.ttl).
		Build()

	err := d.client.Do(ctx, cmd).Error()
	if err == nil {
		return false, nil
	}
	if rueidis.IsRedisNil(err) {
		return true, nil
	}
	return false, fmt.Errorf("dedup set: %w", err)
}

func (d *Deduper) Close() {
	d.client.Close()
}
