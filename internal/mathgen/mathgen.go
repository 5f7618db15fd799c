package mathgen

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/scythe504/mathdash-backend/internal"
)

// maxAttempts bounds the regenerate loop when a batch fails the
// strict-maximum check.
const maxAttempts = 1000

// ErrUnknownMode is returned when a round is requested for a mode the
// generator does not know how to synthesize.
var ErrUnknownMode = errors.New("mathgen: unknown mode")

var operators = []internal.GameMode{internal.ModeAdd, internal.ModeSub, internal.ModeMul, internal.ModeDiv}

// Generator produces quiz rounds. It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func New() *Generator {
	return NewWithRand(rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewWithRand builds a generator on a caller-supplied source, so tests
// can rig the randomness.
func NewWithRand(rng *rand.Rand) *Generator {
	return &Generator{rng: rng}
}

// Generate produces four candidate expressions with exactly one strict
// maximum value. Difficulty is a positive integer; higher values widen
// the operand ranges. When 4 equal-topped batches keep coming back it
// gives up after maxAttempts and forcibly inflates the first option so
// the round still satisfies the uniqueness invariant; that path is an
// escape valve, not a gameplay outcome.
func (g *Generator) Generate(mode internal.GameMode, difficulty int) (internal.Round, error) {
	if difficulty < 1 {
		difficulty = 1
	}
	if err := g.checkMode(mode); err != nil {
		return internal.Round{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	var options []internal.Option
	for attempt := 0; attempt < maxAttempts; attempt++ {
		options = make([]internal.Option, 0, internal.OptionsPerRound)
		for len(options) < internal.OptionsPerRound {
			options = append(options, g.expression(mode, difficulty))
		}

		if winner, ok := strictMax(options); ok {
			return internal.Round{Options: options, WinnerId: winner}, nil
		}
	}

	// Forced fallback: lift the first option strictly above the rest of
	// the batch so the winner stays unique even when the batch has spread
	// values.
	top := options[0].Value
	for _, opt := range options[1:] {
		if opt.Value > top {
			top = opt.Value
		}
	}
	options[0].Value = top + 1
	return internal.Round{Options: options, WinnerId: options[0].Id}, nil
}

func (g *Generator) checkMode(mode internal.GameMode) error {
	switch mode {
	case internal.ModeAdd, internal.ModeSub, internal.ModeMul, internal.ModeDiv, internal.ModeAll:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}

// expression synthesizes one operand pair for the given mode. Division
// picks quotient and divisor first and derives the dividend, so the
// result is always exact.
func (g *Generator) expression(mode internal.GameMode, difficulty int) internal.Option {
	op := mode
	if op == internal.ModeAll {
		op = operators[g.rng.Intn(len(operators))]
	}

	span := difficulty * 10

	var a, b, val int
	var symbol string
	switch op {
	case internal.ModeAdd:
		val = g.intn(2, span)
		b = g.intn(1, val-1)
		a = val - b
		symbol = "+"
	case internal.ModeSub:
		b = g.intn(1, max(5, span/2))
		val = g.intn(0, span)
		a = val + b
		symbol = "-"
	case internal.ModeMul:
		maxFactor := min(12, 2+difficulty*2)
		a = g.intn(1, maxFactor)
		b = g.intn(1, maxFactor)
		val = a * b
		symbol = "×"
	case internal.ModeDiv:
		val = g.intn(1, min(10+difficulty, 20))
		b = g.intn(1, min(5+difficulty, 10))
		a = val * b
		symbol = "÷"
	}

	return internal.Option{
		Id:       uuid.NewString(),
		A:        a,
		B:        b,
		Operator: symbol,
		Value:    val,
		Text:     fmt.Sprintf("%d %s %d", a, symbol, b),
	}
}

// intn returns a uniform int in [lo, hi].
func (g *Generator) intn(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + g.rng.Intn(hi-lo+1)
}

// strictMax reports the id of the single greatest-valued option, or
// false when the top value is tied.
func strictMax(options []internal.Option) (string, bool) {
	sorted := make([]internal.Option, len(options))
	copy(sorted, options)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Value > sorted[j].Value })

	if sorted[0].Value > sorted[1].Value {
		return sorted[0].Id, true
	}
	return "", false
}
