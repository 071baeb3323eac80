package usecases_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lightning-paywall.backend/internal/usecases"
	redispkg "lightning-paywall.backend/pkg/redis"
)

func TestRedisDeduper(t *testing.T) {
	srv, err := miniredis.Run()
	if err != nil {
		t.Skipf("skip: miniredis unavailable: %v", err)
	}
	defer srv.Close()

	redispkg.SetClient(redisv9.NewClient(&redisv9.Options{
		Addr: srv.Addr(),
	}))

	d := usecases.NewRedisDeduper()
	ctx := context.Background()

	require.True(t, d.TryBegin(ctx, "hash1"))
	assert.False(t, d.TryBegin(ctx, "hash1"))
	assert.True(t, d.TryBegin(ctx, "hash2"))

	// An uncompleted lock expires, making the hash retryable.
	srv.FastForward(31 * time.Second)
	assert.True(t, d.TryBegin(ctx, "hash1"))

	// A completed confirmation keeps suppressing redeliveries long after
	// the lock window.
	d.Complete(ctx, "hash1")
	srv.FastForward(time.Hour)
	assert.False(t, d.TryBegin(ctx, "hash1"))
}

func TestMemoryDeduper(t *testing.T) {
	d := usecases.NewMemoryDeduper()
	ctx := context.Background()

	require.True(t, d.TryBegin(ctx, "hash1"))
	assert.False(t, d.TryBegin(ctx, "hash1"))
	assert.True(t, d.TryBegin(ctx, "hash2"))

	d.Complete(ctx, "hash1")
	assert.False(t, d.TryBegin(ctx, "hash1"))
}
