package capture

import (
	"context"
	"fmt"
	"os"
	"time"
)

// SettleOptions controls how long a new file must stay unchanged before it
// is considered fully written. This narrows the race with the producing
// process; it cannot rule it out.
type SettleOptions struct {
	PollInterval  time.Duration
	StableSamples int
	MaxWait       time.Duration
}

func (o SettleOptions) withDefaults() SettleOptions {
	if o.PollInterval <= 0 {
		o.PollInterval = 100 * time.Millisecond
	}
	if o.StableSamples <= 0 {
		o.StableSamples = 3
	}
	if o.MaxWait <= 0 {
		o.MaxWait = 5 * time.Second
	}
	return o
}

// WaitSettled polls path until its size and modification time have been
// unchanged for opts.StableSamples consecutive polls. After opts.MaxWait it
// gives up waiting and returns the latest stat, so a file that is slowly
// appended to is still picked up. It returns an error if the file vanishes.
func WaitSettled(ctx context.Context, path string, opts SettleOptions) (os.FileInfo, error) {
	opts = opts.withDefaults()

	last, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(opts.MaxWait)
	stable := 0
	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()

	for stable < opts.StableSamples {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		cur, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if cur.Size() == last.Size() && cur.ModTime().Equal(last.ModTime()) && cur.Size() > 0 {
			stable++
		} else {
			stable = 0
		}
		last = cur

		if time.Now().After(deadline) {
			if last.Size() == 0 {
				return nil, fmt.Errorf("file still empty after %s", opts.MaxWait)
			}
			return last, nil
		}
	}
	return last, nil
}
