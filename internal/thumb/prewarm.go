package thumb

import (
	"context"
	"log"
	"time"
)

// StartPrewarmLoop captures thumbnails for every listed video in the
// background so catalog pages rarely hit the placeholder path. One
// pass runs immediately, then once per interval.
func StartPrewarmLoop(ctx context.Context, engine *Engine, list func() []Ref, interval time.Duration) {
	go func() {
		prewarmPass(ctx, engine, list)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				prewarmPass(ctx, engine, list)
			}
		}
	}()
}

func prewarmPass(ctx context.Context, engine *Engine, list func() []Ref) {
	refs := list()
	for _, ref := range refs {
		if ctx.Err() != nil {
			return
		}
		engine.Capture(ctx, ref)
	}
	if len(refs) > 0 {
		log.Printf("thumb: prewarm pass over %d videos complete", len(refs))
	}
}
