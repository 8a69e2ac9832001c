// Package seed maintains a registry of process-global randomness sources and
// applies one seed to all of them, so a tracked call can be replayed with
// identical random state. Sources register themselves at init time (blank
// import), mirroring how optional backends register elsewhere in this module.
package seed

import (
	"math/rand"
	"sync"
	"time"
)

// GenerateMax bounds generated seeds to [0, GenerateMax].
const GenerateMax = 1_000_000

// Source is one seedable randomness provider.
type Source interface {
	Name() string
	Seed(seed int64)
}

var (
	mu      sync.Mutex
	sources []Source

	genMu sync.Mutex
	gen   = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// Register adds a source to the registry. Typically called from an init
// function of the package providing the source.
func Register(s Source) {
	mu.Lock()
	defer mu.Unlock()
	sources = append(sources, s)
}

// Names lists the registered sources.
func Names() []string {
	mu.Lock()
	defer mu.Unlock()
	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = s.Name()
	}
	return names
}

// Apply seeds every registered source with the same value.
func Apply(seed int64) {
	mu.Lock()
	defer mu.Unlock()
	for _, s := range sources {
		s.Seed(seed)
	}
}

// Generate draws a fresh seed value. The generator is independent of the
// registered sources so applying a seed never makes the next generated seed
// predictable across runs.
func Generate() int64 {
	genMu.Lock()
	defer genMu.Unlock()
	return gen.Int63n(GenerateMax + 1)
}

// mathRandSource seeds the stdlib global generator.
type mathRandSource struct{}

func (mathRandSource) Name() string { return "math/rand" }

func (mathRandSource) Seed(seed int64) {
	//nolint:staticcheck // seeding the global generator is the whole point
	rand.Seed(seed)
}

func init() {
	Register(mathRandSource{})
}
