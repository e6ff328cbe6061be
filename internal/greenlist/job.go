package greenlist

import (
	"context"
	"errors"
	"sync"
)

var ErrLoadRunning = errors.New("greenlist load already running")

// Job reads the URL file, merges feed links and runs the loader. Only one run
// may be in progress at a time.
type Job struct {
	Loader   *Loader
	URLsFile string
	Feeds    []string

	mu      sync.Mutex
	running bool
}

func (j *Job) Run(ctx context.Context) (Report, error) {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return Report{}, ErrLoadRunning
	}
	j.running = true
	j.mu.Unlock()
	defer func() {
		j.mu.Lock()
		j.running = false
		j.mu.Unlock()
	}()

	urls, err := ReadURLs(j.URLsFile)
	if err != nil {
		return Report{}, err
	}
	urls = j.Loader.Collect(ctx, urls, j.Feeds)
	return j.Loader.Load(ctx, urls)
}
