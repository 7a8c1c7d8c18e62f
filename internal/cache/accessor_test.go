package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

type profile struct {
	Name        string
	Description *string
}

type countingFetcher struct {
	calls atomic.Int32
	value profile
	err   error
}

func (f *countingFetcher) fetch(ctx context.Context, key string) (profile, error) {
	f.calls.Add(1)
	if f.err != nil {
		return profile{}, f.err
	}
	return f.value, nil
}

type recordingObserver struct {
	mu       sync.Mutex
	started  int
	finished []error
}

func (o *recordingObserver) FetchStarted(key string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started++
}

func (o *recordingObserver) FetchFinished(key string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, err)
}

func TestReadFetchesOnce(t *testing.T) {
	f := &countingFetcher{value: profile{Name: "Bob's Diner"}}
	a := NewAccessor(New[profile](), f.fetch)

	for i := 0; i < 2; i++ {
		got, err := a.Read(context.Background(), "r1")
		if err != nil {
			t.Fatalf("read %d failed: %v", i, err)
		}
		if got.Name != "Bob's Diner" {
			t.Errorf("read %d: expected Bob's Diner, got %q", i, got.Name)
		}
	}

	if n := f.calls.Load(); n != 1 {
		t.Errorf("expected 1 remote fetch, got %d", n)
	}
}

func TestReadThenPeek(t *testing.T) {
	f := &countingFetcher{value: profile{Name: "Bob's Diner", Description: nil}}
	a := NewAccessor(New[profile](), f.fetch)

	if _, ok := a.Peek("r1"); ok {
		t.Fatal("expected empty cache")
	}

	if _, err := a.Read(context.Background(), "r1"); err != nil {
		t.Fatalf("read failed: %v", err)
	}

	got, ok := a.Peek("r1")
	if !ok {
		t.Fatal("expected cached value after read")
	}
	if got.Name != "Bob's Diner" || got.Description != nil {
		t.Errorf("unexpected snapshot: %+v", got)
	}
}

func TestPeekNeverFetches(t *testing.T) {
	f := &countingFetcher{value: profile{Name: "Bob's Diner"}}
	a := NewAccessor(New[profile](), f.fetch)

	a.Peek("r1")
	a.Write("r1", profile{Name: "written"})
	a.Peek("r1")
	a.Peek("other")

	if n := f.calls.Load(); n != 0 {
		t.Errorf("expected no remote fetch, got %d", n)
	}
}

func TestWriteSkipsFetch(t *testing.T) {
	f := &countingFetcher{value: profile{Name: "remote"}}
	a := NewAccessor(New[profile](), f.fetch)

	a.Write("r1", profile{Name: "local"})

	got, err := a.Read(context.Background(), "r1")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if got.Name != "local" {
		t.Errorf("expected written value, got %q", got.Name)
	}
	if n := f.calls.Load(); n != 0 {
		t.Errorf("expected no remote fetch, got %d", n)
	}
}

func TestReadFailureCreatesNoEntry(t *testing.T) {
	cause := errors.New("connection refused")
	f := &countingFetcher{err: cause}
	obs := &recordingObserver{}
	a := NewAccessor(New[profile](), f.fetch, WithFetchObserver[profile](obs))

	_, err := a.Read(context.Background(), "r1")

	var ferr *FetchError
	if !errors.As(err, &ferr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if ferr.Key != "r1" {
		t.Errorf("expected key r1, got %s", ferr.Key)
	}
	if !errors.Is(err, cause) {
		t.Error("expected FetchError to wrap the cause")
	}
	if _, ok := a.Peek("r1"); ok {
		t.Error("expected no cache entry after failed fetch")
	}

	// The next read retries
	f.err = nil
	f.value = profile{Name: "Bob's Diner"}
	if _, err := a.Read(context.Background(), "r1"); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if n := f.calls.Load(); n != 2 {
		t.Errorf("expected 2 remote fetches, got %d", n)
	}

	if obs.started != 2 || len(obs.finished) != 2 {
		t.Fatalf("expected 2 observed fetches, got %d started %d finished", obs.started, len(obs.finished))
	}
	if obs.finished[0] == nil || obs.finished[1] != nil {
		t.Errorf("unexpected observed results: %v", obs.finished)
	}
}

func TestConcurrentReadsShareFetch(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32

	fetch := func(ctx context.Context, key string) (profile, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return profile{Name: "Bob's Diner"}, nil
	}
	a := NewAccessor(New[profile](), fetch)

	const readers = 8
	var wg sync.WaitGroup
	results := make([]profile, readers)
	errs := make([]error, readers)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = a.Read(context.Background(), "r1")
	}()
	<-started

	for i := 1; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = a.Read(context.Background(), "r1")
		}(i)
	}

	close(release)
	wg.Wait()

	for i := range results {
		if errs[i] != nil {
			t.Errorf("reader %d failed: %v", i, errs[i])
		}
		if results[i].Name != "Bob's Diner" {
			t.Errorf("reader %d got %q", i, results[i].Name)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("expected 1 remote fetch, got %d", n)
	}
}

func TestFetchDoesNotOverwriteNewerWrite(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	fetch := func(ctx context.Context, key string) (profile, error) {
		close(started)
		<-release
		return profile{Name: "stale"}, nil
	}
	a := NewAccessor(New[profile](), fetch)

	done := make(chan profile)
	go func() {
		v, _ := a.Read(context.Background(), "r1")
		done <- v
	}()

	<-started
	a.Write("r1", profile{Name: "optimistic"})
	close(release)

	if got := <-done; got.Name != "optimistic" {
		t.Errorf("expected read to return the newer write, got %q", got.Name)
	}
	if got, _ := a.Peek("r1"); got.Name != "optimistic" {
		t.Errorf("expected cache to keep the newer write, got %q", got.Name)
	}
}

func TestReplaceAndForget(t *testing.T) {
	a := NewAccessor(New[profile](), (&countingFetcher{}).fetch)

	if _, had := a.Replace("r1", profile{Name: "one"}); had {
		t.Error("expected no previous value")
	}

	prev, had := a.Replace("r1", profile{Name: "two"})
	if !had || prev.Name != "one" {
		t.Errorf("expected previous 'one', got %+v (had=%v)", prev, had)
	}

	a.Forget("r1")
	if _, ok := a.Peek("r1"); ok {
		t.Error("expected entry to be forgotten")
	}
}
