package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Queue names forming the pipeline wire contract.
const (
	QueueSplitting     = "splitting"
	QueueTranscription = "transcription"
	QueueSummary       = "summary"
)

// ErrPopTimeout is returned by Pop when the timeout elapses with no item.
var ErrPopTimeout = errors.New("queue: pop timed out")

// Queue is a named durable FIFO on Redis lists with competing-consumer
// semantics: BLPOP removes an item atomically, so each item is delivered
// to exactly one caller. There is no acknowledgment or redelivery; a
// consumer crash between Pop and completion loses that item.
type Queue struct {
	client    *Client
	keyPrefix string
}

// NewQueue creates a Queue backed by the given Redis client. All list keys
// are prefixed with keyPrefix followed by a colon separator.
func NewQueue(client *Client, keyPrefix string) *Queue {
	if keyPrefix == "" {
		keyPrefix = "queue"
	}
	return &Queue{client: client, keyPrefix: keyPrefix}
}

func (q *Queue) key(name string) string {
	return q.keyPrefix + ":" + name
}

// Push JSON-marshals task and appends it to the tail of the named queue.
// The item is visible to consumers immediately after Push returns.
func (q *Queue) Push(ctx context.Context, name string, task interface{}) error {
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("queue push %q: marshal: %w", name, err)
	}
	if err := q.client.RPush(ctx, q.key(name), body); err != nil {
		return fmt.Errorf("queue push %q: %w", name, err)
	}
	return nil
}

// Pop blocks until an item is available on the named queue or timeout
// elapses, then unmarshals it into task. A timeout of 0 blocks until an
// item arrives or ctx is cancelled. Returns ErrPopTimeout on timeout.
func (q *Queue) Pop(ctx context.Context, name string, timeout time.Duration, task interface{}) error {
	res, err := q.client.BLPop(ctx, timeout, q.key(name))
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return ErrPopTimeout
		}
		return fmt.Errorf("queue pop %q: %w", name, err)
	}
	// BLPOP returns [key, value]
	if len(res) != 2 {
		return fmt.Errorf("queue pop %q: unexpected reply length %d", name, len(res))
	}
	if err := json.Unmarshal([]byte(res[1]), task); err != nil {
		return fmt.Errorf("queue pop %q: unmarshal: %w", name, err)
	}
	return nil
}

// Len returns the current depth of the named queue. Queues are unbounded;
// depth is the only overload signal.
func (q *Queue) Len(ctx context.Context, name string) (int64, error) {
	n, err := q.client.LLen(ctx, q.key(name))
	if err != nil {
		return 0, fmt.Errorf("queue len %q: %w", name, err)
	}
	return n, nil
}
