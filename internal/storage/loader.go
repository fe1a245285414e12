package storage

import (
	"context"
	"fmt"
	"log"
	"time"
)

// CopyFn abstracts a backend's bulk insert. It must be safe for repeated calls
// and return promptly when ctx is done.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// LoadBatches drains rejects from in, groups them into batches of batchSize
// and calls copyFn for each non-empty batch. It returns the number of rows
// copyFn reported and the first error.
func LoadBatches(ctx context.Context, in <-chan Reject, batchSize int, copyFn CopyFn) (int64, error) {
	if batchSize <= 0 {
		return 0, fmt.Errorf("batchSize must be > 0")
	}
	if copyFn == nil {
		return 0, fmt.Errorf("copyFn must not be nil")
	}

	var (
		total     int64
		batches   int64
		batch     = make([][]any, 0, batchSize)
		start     = time.Now()
		lastFlush = start
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := copyFn(ctx, RejectColumns, batch)
		total += n
		batch = batch[:0]
		if err != nil {
			log.Printf("rejects: write failed after=%d total=%d err=%v", n, total, err)
			return err
		}

		batches++
		now := time.Now()
		log.Printf("rejects: batch #%d written=%d total=%d elapsed=%s since_last=%s",
			batches, n, total,
			now.Sub(start).Truncate(time.Millisecond),
			now.Sub(lastFlush).Truncate(time.Millisecond))
		lastFlush = now
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()

		case r, ok := <-in:
			if !ok {
				return total, flush()
			}
			batch = append(batch, r.Values())
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					return total, err
				}
			}
		}
	}
}
