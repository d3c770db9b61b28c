package valkey

import (
	"context"
	"strings"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/pitabwire/cascade/cache"
	"github.com/pitabwire/cascade/dictionary"
)

// Tier is a Valkey-backed shared tier using the official Valkey client.
type Tier struct {
	client valkey.Client
	prefix string
	maxAge time.Duration
}

const connectionTimeout = 5 * time.Second

// New connects to the Valkey server named by the DSN option.
// Both valkey:// and redis:// schemes are accepted.
func New(ctx context.Context, opts ...cache.Option) (*Tier, error) {
	cacheOpts := cache.Apply(opts...)

	valkeyOpts, err := valkey.ParseURL(normaliseDSN(cacheOpts.DSN))
	if err != nil {
		return nil, err
	}

	client, err := valkey.NewClient(valkeyOpts)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	if pingErr := client.Do(pingCtx, client.B().Ping().Build()).Error(); pingErr != nil {
		client.Close()
		return nil, pingErr
	}

	return &Tier{
		client: client,
		prefix: cacheOpts.Prefix,
		maxAge: cacheOpts.MaxAge,
	}, nil
}

func normaliseDSN(dsn string) string {
	if rest, ok := strings.CutPrefix(dsn, "valkeys://"); ok {
		return "rediss://" + rest
	}
	if rest, ok := strings.CutPrefix(dsn, "valkey://"); ok {
		return "redis://" + rest
	}
	return dsn
}

// Fetch retrieves the merged dictionary stored for slot.
func (t *Tier) Fetch(ctx context.Context, slot cache.Slot) (dictionary.Tree, bool, error) {
	cmd := t.client.B().Get().Key(cache.Key(t.prefix, slot)).Build()
	resp := t.client.Do(ctx, cmd)

	if err := resp.Error(); err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	val, err := resp.AsBytes()
	if err != nil {
		return nil, false, err
	}

	tree, err := cache.Decode(val)
	if err != nil {
		return nil, false, err
	}
	return tree, true, nil
}

// Store writes the merged dictionary for slot, expiring it after the
// configured max age.
func (t *Tier) Store(ctx context.Context, slot cache.Slot, tree dictionary.Tree) error {
	data, err := cache.Encode(tree)
	if err != nil {
		return err
	}

	key := cache.Key(t.prefix, slot)

	var cmd valkey.Completed
	if t.maxAge > 0 {
		// Valkey Ex() expects seconds, not duration
		seconds := int64(t.maxAge.Seconds())
		if seconds == 0 {
			seconds = 1
		}
		cmd = t.client.B().Set().Key(key).Value(valkey.BinaryString(data)).ExSeconds(seconds).Build()
	} else {
		cmd = t.client.B().Set().Key(key).Value(valkey.BinaryString(data)).Build()
	}

	return t.client.Do(ctx, cmd).Error()
}

// Close closes the Valkey connection.
func (t *Tier) Close() error {
	t.client.Close()
	return nil
}
