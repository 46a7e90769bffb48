package cost

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

func init() {
	// Offline BPE loader: no network fetch of encoding files at runtime.
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

// tokenCounter counts tokens in text. The bool result reports whether
// the count is exact (encoder loaded) or should be discarded in favor
// of the character-ratio fallback.
type tokenCounter interface {
	count(text string) (int, bool)
}

// tiktokenCounter wraps the cl100k_base encoding shared by the model
// families the engine estimates for. Loading the encoding is expensive,
// so a process-wide singleton is reused across estimators.
type tiktokenCounter struct {
	encoding *tiktoken.Tiktoken
}

var (
	counterInstance *tiktokenCounter
	counterOnce     sync.Once
	counterErr      error
)

// newCounter returns the shared tiktoken counter, or a disabled counter
// if the encoding fails to load. Estimation still works either way.
func newCounter() tokenCounter {
	counterOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			counterErr = err
			return
		}
		counterInstance = &tiktokenCounter{encoding: enc}
	})
	if counterErr != nil {
		return disabledCounter{}
	}
	return counterInstance
}

func (c *tiktokenCounter) count(text string) (int, bool) {
	if text == "" {
		return 0, true
	}
	return len(c.encoding.Encode(text, nil, nil)), true
}

// disabledCounter reports every count as inexact so callers fall back
// to the character ratio.
type disabledCounter struct{}

func (disabledCounter) count(string) (int, bool) { return 0, false }
