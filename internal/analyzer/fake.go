package analyzer

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
)

// ErrEmptyImage is returned when an analyzer receives no image data.
var ErrEmptyImage = errors.New("image is empty")

// Fake returns a random verdict with a fixed probability of seeing a cat.
// The confidence threshold is ignored.
type Fake struct {
	// probability is the chance of a cat verdict, within 0..1.
	probability float64
	// rnd is the random source.
	rnd *rand.Rand
	// mu protects rnd.
	mu sync.Mutex
}

// NewFake creates a Fake seeded with the given values, so runs can be replayed.
func NewFake(probability float64, seed uint64) *Fake {
	return &Fake{
		probability: probability,
		rnd:         rand.New(rand.NewPCG(seed, seed)), //nolint:gosec // Not used for security.
	}
}

// ImageContainsCat returns true with the configured probability.
func (f *Fake) ImageContainsCat(ctx context.Context, image []byte, _ float32) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	if len(image) == 0 {
		return false, ErrEmptyImage
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	return f.rnd.Float64() < f.probability, nil
}
