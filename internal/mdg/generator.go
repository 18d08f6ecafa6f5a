package mdg

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gapscan/pkg/exception"
)

var malformedLines = [][]byte{
	[]byte(`{"symbol":`),
	[]byte(`{"price":5}`),
	[]byte(`{"symbol":"BAD","price":-1}`),
	[]byte(`not json`),
}

// Config controls the generated session.
type Config struct {
	Symbols []string
	Seed    uint64
	// GapperRate is the share of symbols that gap up on news or runner history.
	GapperRate float64
	// MalformedRate is the share of lines that are broken on purpose.
	MalformedRate float64
}

type symbolPath struct {
	name      string
	prevClose float64
	price     float64
	volume    float64
	avgVolume float64
	float     float64
	news      bool
	runner    bool
	announced bool
}

// Generator creates synthetic update records: a full record the first time a
// symbol appears, then partial price and volume updates.
type Generator struct {
	cfg     Config
	rng     *rand.Rand
	symbols []*symbolPath
	index   int
}

// NewGenerator creates a generator for the symbols.
func NewGenerator(cfg Config) (*Generator, error) {
	if len(cfg.Symbols) == 0 {
		return nil, fmt.Errorf("%w: generator has no symbols", exception.ErrInvalidArgument)
	}
	if cfg.GapperRate < 0 || cfg.GapperRate > 1 || cfg.MalformedRate < 0 || cfg.MalformedRate > 1 {
		return nil, fmt.Errorf("%w: generator rates must be within [0, 1]", exception.ErrInvalidArgument)
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	symbols := make([]*symbolPath, 0, len(cfg.Symbols))
	for _, name := range cfg.Symbols {
		p := &symbolPath{
			name:      name,
			prevClose: round(1+rng.Float64()*14, 2),
			avgVolume: math.Round(20_000 + rng.Float64()*480_000),
			float:     math.Round(2_000_000 + rng.Float64()*48_000_000),
		}
		gap := -0.03 + rng.Float64()*0.06
		if rng.Float64() < cfg.GapperRate {
			gap = 0.05 + rng.Float64()*0.45
			p.news = rng.Float64() < 0.7
			p.runner = !p.news || rng.Float64() < 0.3
		}
		p.price = round(p.prevClose*(1+gap), 2)
		symbols = append(symbols, p)
	}

	return &Generator{cfg: cfg, rng: rng, symbols: symbols}, nil
}

// Next returns the next line.
func (g *Generator) Next() ([]byte, error) {
	if g.cfg.MalformedRate > 0 && g.rng.Float64() < g.cfg.MalformedRate {
		return malformedLines[g.rng.IntN(len(malformedLines))], nil
	}
	return g.NextUpdate().Encode()
}

// NextUpdate advances the next symbol in turn.
func (g *Generator) NextUpdate() Update {
	p := g.symbols[g.index]
	g.index = (g.index + 1) % len(g.symbols)

	p.price = math.Max(0.01, round(p.price*(1+(g.rng.Float64()-0.5)*0.01), 2))
	traded := p.avgVolume * (0.01 + g.rng.Float64()*0.05)
	if p.news || p.runner {
		traded *= 20
	}
	p.volume = math.Round(p.volume + traded)

	if !p.announced {
		p.announced = true
		u := Update{
			Symbol:      p.name,
			Price:       float(p.price),
			PrevClose:   float(p.prevClose),
			Volume:      float(p.volume),
			AvgVolume:   float(p.avgVolume),
			FloatShares: float(p.float),
		}
		if p.news {
			u.News = boolean(true)
		}
		if p.runner {
			u.Runner = boolean(true)
		}
		return u
	}
	return Update{
		Symbol: p.name,
		Price:  float(p.price),
		Volume: float(p.volume),
	}
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
