package fileutils

import (
	"context"
)

// WatchFile hashes the file at path on every tick and signals on the
// returned channel when the content changed. A file that cannot be read is
// reported through onErr and compared again on the next tick. The channel
// is closed when ctx is done or ticker is closed.
func WatchFile(ctx context.Context, path string, ticker <-chan struct{}, onErr func(path string, err error)) (chan struct{}, error) {
	ch := make(chan struct{})

	lastHash, err := ComputeFileHash(path)
	if err != nil {
		return nil, err
	}

	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ticker:
				if !ok {
					return
				}
				newHash, err := ComputeFileHash(path)
				if err != nil {
					onErr(path, err)
					continue
				}
				if newHash == lastHash {
					continue
				}
				lastHash = newHash
				select {
				case ch <- struct{}{}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}
