package cognitive

import (
	"math"
	"math/rand"
	"sync"
)

// prng is a single process-seeded random source shared by the MAB selector
// so that a fixed seed makes selection fully deterministic for tests, as
// spec'd ("all random draws use a single PRNG seeded per process").
type prng struct {
	mu  sync.Mutex
	src *rand.Rand
}

func newPRNG(seed int64) *prng {
	return &prng{src: rand.New(rand.NewSource(seed))}
}

func (p *prng) Float64() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.src.Float64()
}

func (p *prng) Intn(n int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.src.Intn(n)
}

// betaSample draws from Beta(alpha, beta) via two Gamma draws, the standard
// construction used when a dedicated Beta distribution isn't on hand.
func (p *prng) betaSample(alpha, beta float64) float64 {
	x := p.gammaSample(alpha)
	y := p.gammaSample(beta)
	if x+y == 0 {
		return 0.5
	}
	return x / (x + y)
}

// gammaSample draws from Gamma(shape, 1) using the Marsaglia-Tsang method
// for shape >= 1, boosting small shapes per the standard trick.
func (p *prng) gammaSample(shape float64) float64 {
	if shape < 1 {
		u := p.Float64()
		return p.gammaSample(shape+1) * math.Pow(u, 1/shape)
	}

	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9*d)
	for {
		var x, v float64
		for {
			x = p.normalSample()
			v = 1 + c*x
			if v > 0 {
				break
			}
		}
		v = v * v * v
		u := p.Float64()
		if u < 1-0.0331*x*x*x*x {
			return d * v
		}
		if math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v
		}
	}
}

func (p *prng) normalSample() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.src.NormFloat64()
}
