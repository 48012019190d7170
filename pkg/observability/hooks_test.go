package observability

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	s := NoopSearchHooks{}
	s.OnPage(ctx, "q", 1, 100, 2500)
	s.OnSplit(ctx, "size", "0..1000000")
	s.OnPrune(ctx, "q a")
	s.OnMatch(ctx, "lib")
	s.OnExhausted(ctx, "q")
	s.OnIncomplete(ctx, "q")
	s.OnFailure(ctx, "q", errors.New("boom"))

	r := NoopRecordHooks{}
	r.OnRecord(ctx, "augment")
	r.OnUnresolved(ctx, "augment", "o/r")

	c := NoopCacheHooks{}
	c.OnCacheHit(ctx, "info")
	c.OnCacheMiss(ctx, "info")
	c.OnCacheSet(ctx, "info", 1024)

	h := NoopHTTPHooks{}
	h.OnRequest(ctx, "GET", "api.github.com", "/search/code")
	h.OnResponse(ctx, "GET", "api.github.com", "/search/code", 200, time.Second)
	h.OnRetry(ctx, "GET", "api.github.com", "/search/code", 1, 502)
	h.OnError(ctx, "GET", "api.github.com", "/search/code", nil)
}

func TestGlobalHooksRegistry(t *testing.T) {
	Reset()

	if _, ok := Search().(NoopSearchHooks); !ok {
		t.Error("Search() should return NoopSearchHooks by default")
	}
	if _, ok := Record().(NoopRecordHooks); !ok {
		t.Error("Record() should return NoopRecordHooks by default")
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("Cache() should return NoopCacheHooks by default")
	}
	if _, ok := HTTP().(NoopHTTPHooks); !ok {
		t.Error("HTTP() should return NoopHTTPHooks by default")
	}

	customSearch := &testSearchHooks{}
	SetSearchHooks(customSearch)
	if Search() != customSearch {
		t.Error("SetSearchHooks should set custom hooks")
	}

	customCache := &testCacheHooks{}
	SetCacheHooks(customCache)
	if Cache() != customCache {
		t.Error("SetCacheHooks should set custom hooks")
	}

	customHTTP := &testHTTPHooks{}
	SetHTTPHooks(customHTTP)
	if HTTP() != customHTTP {
		t.Error("SetHTTPHooks should set custom hooks")
	}

	Reset()
	if _, ok := Search().(NoopSearchHooks); !ok {
		t.Error("Reset() should restore NoopSearchHooks")
	}
}

func TestSetNilHooksIsIgnored(t *testing.T) {
	Reset()
	defer Reset()

	custom := &testSearchHooks{}
	SetSearchHooks(custom)
	SetSearchHooks(nil)

	if Search() != custom {
		t.Error("SetSearchHooks(nil) should be ignored")
	}
}

func TestCounters(t *testing.T) {
	Reset()
	defer Reset()

	c := NewCounters()
	Register(c)
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			Search().OnPage(ctx, "q", 1, 100, 100)
			Search().OnMatch(ctx, "lib")
			HTTP().OnRequest(ctx, "GET", "h", "/p")
		}()
	}
	wg.Wait()
	Search().OnSplit(ctx, "size", "0..10")
	Record().OnRecord(ctx, "augment")
	Record().OnUnresolved(ctx, "augment", "o/r")
	Cache().OnCacheHit(ctx, "info")
	HTTP().OnRetry(ctx, "GET", "h", "/p", 1, 502)

	s := c.Snapshot()
	if s.Pages != 10 || s.Matches != 10 || s.Requests != 10 {
		t.Errorf("pages=%d matches=%d requests=%d, want 10 each", s.Pages, s.Matches, s.Requests)
	}
	if s.Splits != 1 || s.Records != 1 || s.Unresolved != 1 || s.CacheHits != 1 || s.Retries != 1 {
		t.Errorf("unexpected snapshot: %+v", s)
	}
}

// Test implementations
type testSearchHooks struct{ NoopSearchHooks }
type testCacheHooks struct{ NoopCacheHooks }
type testHTTPHooks struct{ NoopHTTPHooks }
