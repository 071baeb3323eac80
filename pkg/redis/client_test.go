package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitInvalidURL(t *testing.T) {
	err := Init("://invalid-url", "")
	assert.Error(t, err)
}

func TestSetAndSetNX(t *testing.T) {
	srv, err := miniredis.Run()
	if err != nil {
		t.Skipf("miniredis unavailable: %v", err)
	}
	defer srv.Close()
	SetClient(goredis.NewClient(&goredis.Options{Addr: srv.Addr()}))
	ctx := context.Background()

	ok, err := SetNX(ctx, "lock", "processing", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = SetNX(ctx, "lock", "processing", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, Set(ctx, "lock", "done", time.Hour))
	got, err := srv.Get("lock")
	require.NoError(t, err)
	assert.Equal(t, "done", got)
}
