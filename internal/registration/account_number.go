package registration

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"
)

const (
	// AccountNumberPrefix starts every generated account number.
	AccountNumberPrefix = "IB"

	// AccountDateLayout renders the creation date as ddmmyy.
	AccountDateLayout = "020106"

	accountSuffixMin = 10_000_000
	accountSuffixMax = 99_999_999
)

// AccountNumberGenerator produces account numbers from a creation date and an
// entropy source. Numbers are not checked for collisions.
type AccountNumberGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand // nil uses the global source
}

// NewAccountNumberGenerator returns a generator drawing from src.
// A nil src uses the runtime's global random source.
func NewAccountNumberGenerator(src rand.Source) *AccountNumberGenerator {
	g := &AccountNumberGenerator{}
	if src != nil {
		g.rng = rand.New(src)
	}
	return g
}

// Generate returns a fresh account number for a record created at created.
func (g *AccountNumberGenerator) Generate(created time.Time) string {
	return fmt.Sprintf("%s%s%d", AccountNumberPrefix, created.Format(AccountDateLayout), g.suffix())
}

// suffix draws uniformly from [accountSuffixMin, accountSuffixMax].
func (g *AccountNumberGenerator) suffix() int {
	n := accountSuffixMax - accountSuffixMin + 1
	if g == nil || g.rng == nil {
		return accountSuffixMin + rand.IntN(n)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return accountSuffixMin + g.rng.IntN(n)
}
