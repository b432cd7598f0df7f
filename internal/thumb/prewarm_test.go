package thumb

import (
	"context"
	"testing"
	"time"
)

func TestPrewarmPassCachesEveryListing(t *testing.T) {
	extractor := &fakeExtractor{frame: []byte("jpeg"), duration: 10}
	engine, cache := newTestEngine(extractor)
	ctx := context.Background()

	prewarmPass(ctx, engine, func() []Ref {
		return []Ref{
			{ID: "1", Path: "a.mp4", Title: "a"},
			{ID: "2", Path: "b.mp4", Title: "b"},
		}
	})

	for _, key := range []string{"video_1", "video_2"} {
		if _, ok := cache.FreshThumbnail(ctx, key); !ok {
			t.Errorf("expected prewarmed thumbnail for %s", key)
		}
	}
}

func TestPrewarmPassStopsOnCancel(t *testing.T) {
	extractor := &fakeExtractor{frame: []byte("jpeg")}
	engine, _ := newTestEngine(extractor)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	prewarmPass(ctx, engine, func() []Ref {
		return []Ref{{ID: "1", Path: "a.mp4"}}
	})

	if extractor.calls != 0 {
		t.Errorf("cancelled pass must not capture, got %d calls", extractor.calls)
	}
}

func TestPrewarmLoopRunsImmediatePass(t *testing.T) {
	extractor := &fakeExtractor{frame: []byte("jpeg")}
	engine, cache := newTestEngine(extractor)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	StartPrewarmLoop(ctx, engine, func() []Ref {
		return []Ref{{ID: "1", Path: "a.mp4", Title: "a"}}
	}, time.Hour)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := cache.FreshThumbnail(ctx, "video_1"); ok {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("immediate prewarm pass never populated the cache")
}
