package connection

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/retailops/goldpipe/internal/pipelinedb/models"
	"github.com/stretchr/testify/assert"
)

func TestNewConnectionPool_InvalidURL(t *testing.T) {
	cfg := &models.Config{
		DatabaseURL: "invalid-url",
		MaxConns:    5,
		MinConns:    1,
	}
	cfg.ApplyDefaults()

	pool, err := NewConnectionPool(cfg)
	assert.Error(t, err)
	assert.Nil(t, pool)
}

func TestNewConnectionPool_MissingURL(t *testing.T) {
	cfg := &models.Config{
		DatabaseURL: "",
		MaxConns:    5,
		MinConns:    1,
	}
	cfg.ApplyDefaults()

	pool, err := NewConnectionPool(cfg)
	assert.Error(t, err)
	assert.Nil(t, pool)
}

func TestConnectionPool_Close_Idempotent(t *testing.T) {
	cfg := &models.Config{
		DatabaseURL: "postgres://localhost/nonexistent",
		MaxConns:    5,
		MinConns:    1,
	}
	cfg.ApplyDefaults()

	ctx, cancel := context.WithCancel(context.Background())

	pool := &ConnectionPool{
		pool:    nil,
		config:  cfg,
		logger:  cfg.Logger,
		ctx:     ctx,
		cancel:  cancel,
		closed:  atomic.Bool{},
		healthy: atomic.Bool{},
	}

	pool.Close()
	assert.True(t, pool.closed.Load())

	// Second close is a no-op
	pool.Close()
	assert.True(t, pool.closed.Load())
}

func TestConnectionPool_Acquire_WhenClosed(t *testing.T) {
	cfg := &models.Config{
		DatabaseURL: "postgres://localhost/retail_db",
		MaxConns:    5,
		MinConns:    1,
	}
	cfg.ApplyDefaults()

	pool := &ConnectionPool{
		pool:   nil,
		config: cfg,
		logger: cfg.Logger,
	}

	pool.closed.Store(true)

	conn, err := pool.Acquire(context.Background())
	assert.Error(t, err)
	assert.Nil(t, conn)
	assert.ErrorIs(t, err, models.ErrConnectionFailed)
}

func TestConnectionPool_Acquire_WhenUnhealthy(t *testing.T) {
	cfg := &models.Config{
		DatabaseURL: "postgres://localhost/retail_db",
		MaxConns:    5,
		MinConns:    1,
	}
	cfg.ApplyDefaults()

	pool := &ConnectionPool{
		pool:    nil,
		config:  cfg,
		logger:  cfg.Logger,
		healthy: atomic.Bool{},
	}

	pool.healthy.Store(false)

	conn, err := pool.Acquire(context.Background())
	assert.Error(t, err)
	assert.Nil(t, conn)
	assert.ErrorIs(t, err, models.ErrConnectionFailed)
}

func TestConnectionPool_HealthStatus_Transitions(t *testing.T) {
	cfg := &models.Config{
		DatabaseURL: "postgres://localhost/retail_db",
		MaxConns:    5,
		MinConns:    1,
	}
	cfg.ApplyDefaults()

	pool := &ConnectionPool{
		pool:    nil,
		config:  cfg,
		logger:  cfg.Logger,
		healthy: atomic.Bool{},
	}

	pool.healthy.Store(true)
	assert.True(t, pool.IsHealthy())

	wasHealthy := pool.healthy.Swap(false)
	assert.True(t, wasHealthy)
	assert.False(t, pool.IsHealthy())

	wasUnhealthy := !pool.healthy.Swap(true)
	assert.True(t, wasUnhealthy)
	assert.True(t, pool.IsHealthy())
}

func TestConnectionPool_minDuration(t *testing.T) {
	tests := []struct {
		name     string
		a        time.Duration
		b        time.Duration
		expected time.Duration
	}{
		{"a smaller", 1 * time.Second, 2 * time.Second, 1 * time.Second},
		{"b smaller", 5 * time.Second, 3 * time.Second, 3 * time.Second},
		{"equal", 2 * time.Second, 2 * time.Second, 2 * time.Second},
		{"zero", 0, 5 * time.Second, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, minDuration(tt.a, tt.b))
		})
	}
}

func TestConnectionPool_ConcurrentStatusChecks(t *testing.T) {
	cfg := &models.Config{
		DatabaseURL: "postgres://localhost/retail_db",
		MaxConns:    5,
		MinConns:    1,
	}
	cfg.ApplyDefaults()

	pool := &ConnectionPool{
		pool:    nil,
		config:  cfg,
		logger:  cfg.Logger,
		healthy: atomic.Bool{},
	}

	pool.healthy.Store(true)

	var wg sync.WaitGroup
	results := make([]bool, 100)

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx] = pool.IsHealthy()
		}(i)
	}

	wg.Wait()

	for _, result := range results {
		assert.True(t, result)
	}
}

func TestConnectionPool_Stats_NilPool(t *testing.T) {
	cfg := &models.Config{
		DatabaseURL: "postgres://localhost/retail_db",
		MaxConns:    5,
		MinConns:    1,
	}
	cfg.ApplyDefaults()

	pool := &ConnectionPool{
		pool:   nil,
		config: cfg,
		logger: cfg.Logger,
	}

	assert.Nil(t, pool.Stats())
}

func TestConnectionPool_ReconnectDelay_Exponential(t *testing.T) {
	delay := time.Second

	delay = minDuration(delay*2, 30*time.Second)
	assert.Equal(t, 2*time.Second, delay)

	delay = minDuration(delay*2, 30*time.Second)
	assert.Equal(t, 4*time.Second, delay)

	// Doubling past the cap sticks at 30s
	delay = 15 * time.Second
	for i := 0; i < 5; i++ {
		delay = minDuration(delay*2, 30*time.Second)
	}
	assert.Equal(t, 30*time.Second, delay)
}

func TestConnectionPool_Close_WithCancelContext(t *testing.T) {
	cfg := &models.Config{
		DatabaseURL: "postgres://localhost/retail_db",
		MaxConns:    5,
		MinConns:    1,
	}
	cfg.ApplyDefaults()

	ctx, cancel := context.WithCancel(context.Background())

	pool := &ConnectionPool{
		pool:    nil,
		config:  cfg,
		logger:  cfg.Logger,
		ctx:     ctx,
		cancel:  cancel,
		closed:  atomic.Bool{},
		healthy: atomic.Bool{},
	}

	pool.healthy.Store(true)

	select {
	case <-ctx.Done():
		t.Fatal("context was cancelled too early")
	default:
	}

	pool.Close()

	select {
	case <-ctx.Done():
		// Expected
	case <-time.After(1 * time.Second):
		t.Fatal("context was not cancelled after pool close")
	}
}
