package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	valkeylib "github.com/valkey-io/valkey-go"
)

const (
	// redisDedupTTLSeconds is the inbound dedup TTL when Redis is backing
	// the dedup keys.
	redisDedupTTLSeconds = 86400

	// blpopTimeout is the blocking-pop timeout per feeder iteration. Short
	// enough that shutdown is prompt.
	blpopTimeout = 1 * time.Second
)

// RedisLanes holds the pooled Redis client and the outbound list keys.
// One client per process; commands never open their own connections.
type RedisLanes struct {
	client    valkeylib.Client
	namespace string
	highKey   string
	normalKey string
}

// NewRedisLanes connects to Redis using the given URL (redis:// form) and
// namespace (defaults to "zapista").
func NewRedisLanes(url, namespace string) (*RedisLanes, error) {
	if namespace == "" {
		namespace = "zapista"
	}

	opts, err := valkeylib.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client, err := valkeylib.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisLanes{
		client:    client,
		namespace: namespace,
		highKey:   namespace + ":outbound:high",
		normalKey: namespace + ":outbound:normal",
	}, nil
}

// Namespace returns the configured key namespace.
func (r *RedisLanes) Namespace() string { return r.namespace }

// Close releases the client.
func (r *RedisLanes) Close() {
	if r.client != nil {
		r.client.Close()
	}
}

// Push RPUSHes the JSON-serialized message to its priority lane.
func (r *RedisLanes) Push(msg OutboundMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal outbound: %w", err)
	}

	key := r.normalKey
	if msg.Priority() == PriorityHigh {
		key = r.highKey
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.client.Do(ctx, r.client.B().Rpush().Key(key).Element(string(data)).Build()).Error()
}

// Pop BLPOPs both lanes in priority order (high before normal). Returns
// ok=false when the timeout elapsed with no message.
func (r *RedisLanes) Pop(ctx context.Context) (OutboundMessage, bool, error) {
	resp := r.client.Do(ctx, r.client.B().Blpop().
		Key(r.highKey, r.normalKey).
		Timeout(blpopTimeout.Seconds()).
		Build())
	if err := resp.Error(); err != nil {
		if valkeylib.IsValkeyNil(err) {
			return OutboundMessage{}, false, nil
		}
		return OutboundMessage{}, false, err
	}

	// BLPOP returns [key, value].
	pair, err := resp.AsStrSlice()
	if err != nil || len(pair) < 2 {
		return OutboundMessage{}, false, fmt.Errorf("unexpected blpop reply: %w", err)
	}

	var msg OutboundMessage
	if err := json.Unmarshal([]byte(pair[1]), &msg); err != nil {
		return OutboundMessage{}, false, fmt.Errorf("unmarshal outbound: %w", err)
	}
	return msg, true, nil
}

// RedisDeduper backs inbound dedup with SET NX EX so restarts and multiple
// processes share one dedup window.
type RedisDeduper struct {
	client    valkeylib.Client
	namespace string
}

// NewRedisDeduper creates a Redis-backed inbound deduper sharing the lanes'
// pooled client.
func NewRedisDeduper(lanes *RedisLanes) *RedisDeduper {
	return &RedisDeduper{client: lanes.client, namespace: lanes.namespace}
}

// FirstSeen runs SET <ns>:<key> "1" NX EX 86400. A nil reply means the key
// already existed. Redis errors degrade to "first seen" so a Redis outage
// never drops real messages.
func (d *RedisDeduper) FirstSeen(key string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	resp := d.client.Do(ctx, d.client.B().Set().
		Key(d.namespace+":"+key).
		Value("1").
		Nx().
		ExSeconds(redisDedupTTLSeconds).
		Build())
	if err := resp.Error(); err != nil {
		if valkeylib.IsValkeyNil(err) {
			return false
		}
		return true
	}
	return true
}
