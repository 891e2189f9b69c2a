package repository

// Option applies a configuration option to the ShardedStore.
type Option func(*options)

type options struct {
	shardCount int
}

// WithShardCount sets the number of shards. Values below one are ignored.
func WithShardCount(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.shardCount = n
		}
	}
}
