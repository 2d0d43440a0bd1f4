package keyset

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/verita-sec/verita/internal/core"
)

func testKeySet(t *testing.T, kids ...string) core.KeySet {
	t.Helper()
	set := core.KeySet{FetchedAt: time.Now()}
	for _, kid := range kids {
		priv, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			t.Fatalf("generating key: %v", err)
		}
		set.Keys = append(set.Keys, core.SigningKey{
			KID:       kid,
			Algorithm: "RS256",
			PublicKey: &priv.PublicKey,
		})
	}
	return set
}

func TestCache_SingleFetchWithinTTL(t *testing.T) {
	set := testKeySet(t, "kid-1")

	var fetches atomic.Int32
	cache := NewCache(func(ctx context.Context) (core.KeySet, error) {
		fetches.Add(1)
		return set, nil
	})

	for i := 0; i < 3; i++ {
		if _, err := cache.Key(context.Background(), "kid-1"); err != nil {
			t.Fatalf("Key: %v", err)
		}
	}

	if got := fetches.Load(); got != 1 {
		t.Errorf("fetches = %d, want 1", got)
	}
}

func TestCache_RefreshAfterTTL(t *testing.T) {
	var fetches atomic.Int32
	cache := NewCache(func(ctx context.Context) (core.KeySet, error) {
		fetches.Add(1)
		set := testKeySet(t, "kid-1")
		return set, nil
	}, WithTTL(10*time.Minute))

	base := time.Now()
	cache.now = func() time.Time { return base }

	if _, err := cache.Key(context.Background(), "kid-1"); err != nil {
		t.Fatalf("Key: %v", err)
	}

	cache.now = func() time.Time { return base.Add(11 * time.Minute) }
	if _, err := cache.Key(context.Background(), "kid-1"); err != nil {
		t.Fatalf("Key after ttl: %v", err)
	}

	if got := fetches.Load(); got != 2 {
		t.Errorf("fetches = %d, want 2", got)
	}
}

func TestCache_UnknownKidWithFreshCache(t *testing.T) {
	var fetches atomic.Int32
	cache := NewCache(func(ctx context.Context) (core.KeySet, error) {
		fetches.Add(1)
		return testKeySet(t, "kid-1"), nil
	})

	if _, err := cache.Key(context.Background(), "kid-1"); err != nil {
		t.Fatalf("Key: %v", err)
	}

	// a miss on a fresh set must not trigger another fetch
	_, err := cache.Key(context.Background(), "kid-2")
	if !errors.Is(err, core.ErrUnknownSigningKey) {
		t.Fatalf("expected ErrUnknownSigningKey, got %v", err)
	}
	if got := fetches.Load(); got != 1 {
		t.Errorf("fetches = %d, want 1", got)
	}
}

func TestCache_StaleFallbackOnFetchFailure(t *testing.T) {
	good := testKeySet(t, "kid-1")
	fail := false
	cache := NewCache(func(ctx context.Context) (core.KeySet, error) {
		if fail {
			return core.KeySet{}, errors.New("upstream down")
		}
		return good, nil
	}, WithTTL(10*time.Minute), WithMaxStale(time.Hour))

	base := time.Now()
	cache.now = func() time.Time { return base }
	if _, err := cache.Key(context.Background(), "kid-1"); err != nil {
		t.Fatalf("Key: %v", err)
	}

	// past TTL but within the staleness budget: the cached set still serves
	fail = true
	cache.now = func() time.Time { return base.Add(30 * time.Minute) }
	if _, err := cache.Key(context.Background(), "kid-1"); err != nil {
		t.Fatalf("Key with stale fallback: %v", err)
	}

	// past the staleness budget: fail closed
	cache.now = func() time.Time { return base.Add(2 * time.Hour) }
	if _, err := cache.Key(context.Background(), "kid-1"); err == nil {
		t.Fatal("expected failure once the staleness budget is exhausted")
	}
}

func TestCache_EmptyCacheFetchFailureFailsClosed(t *testing.T) {
	cache := NewCache(func(ctx context.Context) (core.KeySet, error) {
		return core.KeySet{}, errors.New("upstream down")
	})

	if _, err := cache.Key(context.Background(), "kid-1"); err == nil {
		t.Fatal("expected failure with no cached set available")
	}
}

func TestCache_ConcurrentMissesShareOneFetch(t *testing.T) {
	var fetches atomic.Int32
	release := make(chan struct{})
	cache := NewCache(func(ctx context.Context) (core.KeySet, error) {
		fetches.Add(1)
		<-release
		return testKeySet(t, "kid-1"), nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Key(context.Background(), "kid-1"); err != nil {
				t.Errorf("Key: %v", err)
			}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := fetches.Load(); got != 1 {
		t.Errorf("fetches = %d, want 1 shared fetch", got)
	}
}
