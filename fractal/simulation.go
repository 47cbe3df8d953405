// Package fractal is the simulation side of the relay: a small emergent grid
// whose state summaries drive the questions it asks and the answers it gives.
package fractal

import (
	"math"
	"math/rand"
	"sync"
)

const (
	workspaceSize = 16
	paramDim      = 8

	// parameter channels
	ParamNeighborhood = 0
	ParamHierarchy    = 1
	ParamRecurrent    = 2
	ParamWorkspace    = 3
	ParamActivation   = 4

	activeThreshold = 0.5
	entropyFloor    = 1e-8
)

type SimConfig struct {
	Size         int
	Channels     int
	StateDim     int
	LearningRate float64
	Seed         int64
}

func DefaultSimConfig() SimConfig {
	return SimConfig{
		Size:         16,
		Channels:     4,
		StateDim:     5,
		LearningRate: 0.0011,
		Seed:         1,
	}
}

// Summary describes the whole grid at one step.
type Summary struct {
	Step     int     `json:"step"`
	Mean     float64 `json:"state_mean"`
	Std      float64 `json:"state_std"`
	Variance float64 `json:"state_variance"`
	Entropy  float64 `json:"entropy"`
	Active   int     `json:"active_nodes"`
}

// Simulation is a size x size x channels grid of stateDim vectors in [0,1].
// Each step mixes a cell with its four neighbours, its own channel's mean and a
// shared workspace, weighted by per-cell parameters.
type Simulation struct {
	mu sync.RWMutex

	size, channels, dim int
	lr                  float64

	state     []float64
	next      []float64
	params    []float64
	workspace [workspaceSize]float64
	rng       *rand.Rand
	steps     int
}

func NewSimulation(cfg SimConfig) *Simulation {
	d := DefaultSimConfig()
	if cfg.Size <= 0 {
		cfg.Size = d.Size
	}
	if cfg.Channels <= 0 {
		cfg.Channels = d.Channels
	}
	if cfg.StateDim <= 0 {
		cfg.StateDim = d.StateDim
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = d.LearningRate
	}

	cells := cfg.Size * cfg.Size * cfg.Channels
	s := &Simulation{
		size:     cfg.Size,
		channels: cfg.Channels,
		dim:      cfg.StateDim,
		lr:       cfg.LearningRate,
		state:    make([]float64, cells*cfg.StateDim),
		next:     make([]float64, cells*cfg.StateDim),
		params:   make([]float64, cells*paramDim),
		rng:      rand.New(rand.NewSource(cfg.Seed)),
	}
	for i := range s.state {
		s.state[i] = s.rng.Float64()
	}
	for i := range s.params {
		s.params[i] = s.rng.Float64()
	}
	for i := range s.workspace {
		s.workspace[i] = s.rng.Float64()
	}
	return s
}

func (s *Simulation) cell(i, j, c int) int {
	return (i*s.size+j)*s.channels + c
}

func (s *Simulation) wrap(i int) int {
	return (i + s.size) % s.size
}

// Step advances the grid by one update and returns the new step count.
func (s *Simulation) Step() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	// per-channel means feed the hierarchical term
	chanMean := make([]float64, s.channels*s.dim)
	for i := 0; i < s.size; i++ {
		for j := 0; j < s.size; j++ {
			for c := 0; c < s.channels; c++ {
				base := s.cell(i, j, c) * s.dim
				for k := 0; k < s.dim; k++ {
					chanMean[c*s.dim+k] += s.state[base+k]
				}
			}
		}
	}
	norm := float64(s.size * s.size)
	for k := range chanMean {
		chanMean[k] /= norm
	}

	neighbours := [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}

	for i := 0; i < s.size; i++ {
		for j := 0; j < s.size; j++ {
			for c := 0; c < s.channels; c++ {
				idx := s.cell(i, j, c)
				base := idx * s.dim
				p := s.params[idx*paramDim : (idx+1)*paramDim]
				wsum := p[ParamNeighborhood] + p[ParamHierarchy] + p[ParamRecurrent] + p[ParamWorkspace]
				if wsum <= 0 {
					wsum = 1
				}

				for k := 0; k < s.dim; k++ {
					var nh float64
					for _, d := range neighbours {
						nh += s.state[s.cell(s.wrap(i+d[0]), s.wrap(j+d[1]), c)*s.dim+k]
					}
					nh /= 4

					agg := (p[ParamNeighborhood]*nh +
						p[ParamHierarchy]*chanMean[c*s.dim+k] +
						p[ParamRecurrent]*s.state[base+k] +
						p[ParamWorkspace]*s.workspace[(c*s.dim+k)%workspaceSize]) / wsum

					out := leakyReLU(agg-0.5, 0.1*p[ParamActivation]) + 0.5
					out += s.lr * s.rng.NormFloat64()
					s.next[base+k] = clamp01(out)
				}
			}
		}
	}

	s.state, s.next = s.next, s.state

	// workspace drifts toward the channel means
	for w := range s.workspace {
		s.workspace[w] = 0.9*s.workspace[w] + 0.1*chanMean[w%len(chanMean)]
	}

	s.steps++
	return s.steps
}

// Boost multiplies one parameter channel of every cell by factor.
func (s *Simulation) Boost(param int, factor float64) {
	if param < 0 || param >= paramDim {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := param; i < len(s.params); i += paramDim {
		s.params[i] *= factor
	}
}

// ParamMean is the mean of one parameter channel across all cells.
func (s *Simulation) ParamMean(param int) float64 {
	if param < 0 || param >= paramDim {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var sum float64
	for i := param; i < len(s.params); i += paramDim {
		sum += s.params[i]
	}
	return sum / float64(len(s.params)/paramDim)
}

func (s *Simulation) Steps() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.steps
}

func (s *Simulation) Summary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return summarize(s.state, s.steps)
}

func summarize(state []float64, step int) Summary {
	n := float64(len(state))
	sm := Summary{Step: step}
	if n == 0 {
		return sm
	}

	var sum, ent float64
	for _, v := range state {
		sum += v
		if v > activeThreshold {
			sm.Active++
		}
		ent -= v * math.Log(math.Min(math.Max(v, entropyFloor), 1))
	}
	sm.Mean = sum / n
	sm.Entropy = ent / n

	var sq float64
	for _, v := range state {
		d := v - sm.Mean
		sq += d * d
	}
	sm.Variance = sq / n
	sm.Std = math.Sqrt(sm.Variance)
	return sm
}

const (
	InsightHighActivation = "High activation detected - system is highly engaged"
	InsightLowActivation  = "Low activation state - system is in contemplative mode"
	InsightHighVariance   = "High variance patterns emerging - creative phase"
)

// Insights turns a summary into human readable observations.
func (sm Summary) Insights() []string {
	var out []string
	switch {
	case sm.Mean > 0.6:
		out = append(out, InsightHighActivation)
	case sm.Mean < 0.3:
		out = append(out, InsightLowActivation)
	}
	if sm.Variance > 0.1 {
		out = append(out, InsightHighVariance)
	}
	return out
}

func leakyReLU(x, a float64) float64 {
	if x >= 0 {
		return x
	}
	return a * x
}

func clamp01(x float64) float64 {
	switch {
	case x < 0:
		return 0
	case x > 1:
		return 1
	}
	return x
}
