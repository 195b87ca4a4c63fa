package utils

import (
	"testing"
	"time"
)

func TestPoolConfigDefaults(t *testing.T) {
	got := PostgresPoolConfig{}.withDefaults()
	if got.MaxOpenConns != 20 || got.MaxIdleConns != 10 {
		t.Fatalf("unexpected conn defaults: %+v", got)
	}
	if got.ConnMaxLifetime != 30*time.Minute || got.ConnMaxIdleTime != 5*time.Minute {
		t.Fatalf("unexpected lifetime defaults: %+v", got)
	}
	if got.PingTimeout != 5*time.Second {
		t.Fatalf("unexpected ping timeout: %v", got.PingTimeout)
	}
}

func TestPoolConfigKeepsOverrides(t *testing.T) {
	in := PostgresPoolConfig{
		MaxOpenConns: 3,
		PingTimeout:  time.Second,
	}
	got := in.withDefaults()
	if got.MaxOpenConns != 3 || got.PingTimeout != time.Second {
		t.Fatalf("overrides lost: %+v", got)
	}
	if got.MaxIdleConns != 10 {
		t.Fatalf("unset field must take default, got %d", got.MaxIdleConns)
	}
}
