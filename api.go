package querycache

import (
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
)

const (
	DefaultTTL             = 5 * time.Minute
	DefaultMaxSize         = 100
	DefaultCleanupInterval = time.Minute
)

// Options tune a Cache. The zero value is ready to use.
type Options struct {
	DefaultTTL      time.Duration // 0 => 5m
	MaxSize         int           // 0 => 100
	CleanupInterval time.Duration // 0 => 1m; < 0 disables the sweep loop
	CoalesceFetches bool          // share one fetch between concurrent misses of a key

	Clock  clock.Clock // nil => wall clock
	Logger Logger      // nil => NopLogger
	Hooks  Hooks       // nil => NopHooks
}

func New(opts Options) (*Cache, error) {
	if opts.MaxSize < 0 {
		return nil, fmt.Errorf("querycache: max size must not be negative, got %d", opts.MaxSize)
	}
	if opts.DefaultTTL < 0 {
		return nil, fmt.Errorf("querycache: default ttl must not be negative, got %s", opts.DefaultTTL)
	}
	return newCache(opts), nil
}
