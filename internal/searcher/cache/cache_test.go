package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	gomock "github.com/golang/mock/gomock"
	"github.com/google/go-cmp/cmp"

	"github.com/Adithya-Monish-Kumar-K/appsearch/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/appsearch/pkg/config"
	pkgredis "github.com/Adithya-Monish-Kumar-K/appsearch/pkg/redis"
)

// memBackend is an in-process Backend.
type memBackend struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemBackend() *memBackend { return &memBackend{data: make(map[string][]byte)} }

func (m *memBackend) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, errors.New("miss")
	}
	return v, nil
}

func (m *memBackend) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memBackend) DeletePrefix(_ context.Context, prefix string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

var hits = []ranker.Result{{Name: "C", Score: 1}, {Name: "A", Score: 0.894}}

func TestKey(t *testing.T) {
	base := Key([]string{"cat", "dog"}, 2, 1)
	for name, other := range map[string]string{
		"order":      Key([]string{"dog", "cat"}, 2, 1),
		"k":          Key([]string{"cat", "dog"}, 3, 1),
		"generation": Key([]string{"cat", "dog"}, 2, 2),
		"join":       Key([]string{"cat dog"}, 2, 1),
	} {
		if other == base {
			t.Errorf("%s: key collides with base", name)
		}
	}
	if Key([]string{"cat", "dog"}, 2, 1) != base {
		t.Error("Key is not deterministic")
	}
	if !strings.HasPrefix(base, keyPrefix+"g1:") {
		t.Errorf("key %q lacks prefix", base)
	}
}

func TestGetOrCompute(t *testing.T) {
	c := New(newMemBackend(), time.Minute, nil)
	ctx := context.Background()
	var calls atomic.Int64
	compute := func() (Entry, error) {
		calls.Add(1)
		return Entry{Results: hits}, nil
	}

	e, cached, err := c.GetOrCompute(ctx, []string{"cat"}, 2, 1, compute)
	if err != nil || cached {
		t.Fatalf("first call: cached=%v err=%v", cached, err)
	}
	e2, cached, err := c.GetOrCompute(ctx, []string{"cat"}, 2, 1, compute)
	if err != nil || !cached {
		t.Fatalf("second call: cached=%v err=%v", cached, err)
	}
	if diff := cmp.Diff(e, e2); diff != "" {
		t.Errorf("Diff: (-want +got)\n%s", diff)
	}
	if _, cached, _ := c.GetOrCompute(ctx, []string{"cat"}, 2, 2, compute); cached {
		t.Error("new generation served a stale entry")
	}
	if calls.Load() != 2 {
		t.Errorf("compute ran %d times; want 2", calls.Load())
	}
	if s := c.Stats(); s.Hits != 1 || s.Misses != 2 {
		t.Errorf("stats = %+v", s)
	}
}

func TestGetOrComputeCachesNotFound(t *testing.T) {
	c := New(newMemBackend(), time.Minute, nil)
	ctx := context.Background()
	nf := Entry{Results: []ranker.Result{}, NotFound: true, Reason: "no_match"}
	if _, _, err := c.GetOrCompute(ctx, []string{"zebra"}, 1, 1, func() (Entry, error) { return nf, nil }); err != nil {
		t.Fatal(err)
	}
	got, ok := c.Get(ctx, []string{"zebra"}, 1, 1)
	if !ok {
		t.Fatal("not-found outcome was not cached")
	}
	if diff := cmp.Diff(nf, got); diff != "" {
		t.Errorf("Diff: (-want +got)\n%s", diff)
	}
}

func TestGetOrComputeErrorNotCached(t *testing.T) {
	c := New(newMemBackend(), time.Minute, nil)
	boom := errors.New("boom")
	if _, _, err := c.GetOrCompute(context.Background(), []string{"x"}, 1, 1, func() (Entry, error) {
		return Entry{}, boom
	}); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if _, ok := c.Get(context.Background(), []string{"x"}, 1, 1); ok {
		t.Error("error outcome was cached")
	}
}

func TestGetOrComputeSingleflight(t *testing.T) {
	c := New(newMemBackend(), time.Minute, nil)
	var calls atomic.Int64
	release := make(chan struct{})
	compute := func() (Entry, error) {
		calls.Add(1)
		<-release
		return Entry{Results: hits}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := c.GetOrCompute(context.Background(), []string{"cat"}, 2, 1, compute); err != nil {
				t.Error(err)
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	if n := calls.Load(); n < 1 || n > 8 {
		t.Errorf("compute ran %d times", n)
	}
}

func TestBackendErrorsAreMisses(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()
	backend := NewMockBackend(mockCtrl)
	backend.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, errors.New("connection refused"))
	backend.EXPECT().Get(gomock.Any(), gomock.Any()).Return([]byte("{not json"), nil)
	backend.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any(), 30*time.Second).Return(errors.New("read only"))
	backend.EXPECT().DeletePrefix(gomock.Any(), keyPrefix).Return(int64(3), nil)

	c := New(backend, 30*time.Second, nil)
	ctx := context.Background()
	if _, ok := c.Get(ctx, []string{"a"}, 1, 1); ok {
		t.Error("backend error reported as hit")
	}
	if _, ok := c.Get(ctx, []string{"a"}, 1, 1); ok {
		t.Error("corrupt entry reported as hit")
	}
	c.Set(ctx, []string{"a"}, 1, 1, Entry{Results: hits})
	if n, err := c.Invalidate(ctx); err != nil || n != 3 {
		t.Errorf("Invalidate = %d, %v", n, err)
	}
	if s := c.Stats(); s.Misses != 2 || s.HitRate != 0 {
		t.Errorf("stats = %+v", s)
	}
}

func TestRedisBackend(t *testing.T) {
	client, err := pkgredis.NewClient(config.RedisConfig{Addr: "localhost:6379", DB: 15, PoolSize: 2})
	if err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	defer client.Close()

	c := New(client, time.Minute, nil)
	ctx := context.Background()
	if _, err := c.Invalidate(ctx); err != nil {
		t.Fatal(err)
	}
	c.Set(ctx, []string{"cat"}, 2, 7, Entry{Results: hits})
	got, ok := c.Get(ctx, []string{"cat"}, 2, 7)
	if !ok {
		t.Fatal("entry not found in redis")
	}
	if diff := cmp.Diff(hits, got.Results); diff != "" {
		t.Errorf("Diff: (-want +got)\n%s", diff)
	}
	if n, err := c.Invalidate(ctx); err != nil || n != 1 {
		t.Errorf("Invalidate = %d, %v", n, err)
	}
}
