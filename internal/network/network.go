package network

import (
	"fmt"
	"math/rand"

	deep "github.com/patrikeh/go-deep"
	"github.com/patrikeh/go-deep/training"
)

// Config describes one value network. Inputs and Outputs come from the
// feature schema and action set; Hidden is tunable.
type Config struct {
	// Inputs and Outputs are derived from the feature schema and action
	// set at wiring time, never from configuration files.
	Inputs       int     `yaml:"-" validate:"gte=0"`
	Hidden       []int   `yaml:"hidden"`
	Outputs      int     `yaml:"-" validate:"gte=0"`
	LearningRate float64 `yaml:"learning_rate" default:"0.001" validate:"gt=0"`
	WeightStd    float64 `yaml:"weight_std" default:"0.5" validate:"gt=0"`
}

// DefaultHidden is the hidden layout used when none is configured.
var DefaultHidden = []int{64, 32}

// DefaultConfig returns the standard network parameters for the given
// vector width and action count.
func DefaultConfig(inputs, outputs int) Config {
	return Config{
		Inputs:       inputs,
		Hidden:       append([]int(nil), DefaultHidden...),
		Outputs:      outputs,
		LearningRate: 0.001,
		WeightStd:    0.5,
	}
}

// Network is a feedforward value approximator: state vector in, one
// estimated value per action out. Online and target copies are built
// from the same Config, so their parameter snapshots interchange.
// Instances are not goroutine-safe; the owner serializes access.
type Network struct {
	cfg     Config
	nn      *deep.Neural
	trainer *training.OnlineTrainer
}

// New builds a network with weights drawn from the given source, so
// equal seeds build identical networks.
func New(cfg Config, rng *rand.Rand) (*Network, error) {
	if cfg.Inputs <= 0 {
		return nil, fmt.Errorf("network: inputs must be positive, got %d", cfg.Inputs)
	}
	if cfg.Outputs <= 0 {
		return nil, fmt.Errorf("network: outputs must be positive, got %d", cfg.Outputs)
	}
	if cfg.LearningRate <= 0 {
		return nil, fmt.Errorf("network: learning rate must be positive, got %v", cfg.LearningRate)
	}
	if len(cfg.Hidden) == 0 {
		cfg.Hidden = append([]int(nil), DefaultHidden...)
	}
	for _, h := range cfg.Hidden {
		if h <= 0 {
			return nil, fmt.Errorf("network: hidden widths must be positive, got %v", cfg.Hidden)
		}
	}

	layout := append(append([]int(nil), cfg.Hidden...), cfg.Outputs)
	nn := deep.NewNeural(&deep.Config{
		Inputs:     cfg.Inputs,
		Layout:     layout,
		Activation: deep.ActivationSigmoid,
		Mode:       deep.ModeRegression,
		Weight: func() float64 {
			return rng.NormFloat64() * cfg.WeightStd
		},
		Bias: true,
	})

	solver := training.NewAdam(cfg.LearningRate, 0.9, 0.999, 1e-8)
	return &Network{
		cfg:     cfg,
		nn:      nn,
		trainer: training.NewTrainer(solver, 0),
	}, nil
}

// Evaluate returns the estimated value of every action for a state.
// It reads the parameters without modifying anything.
func (n *Network) Evaluate(state []float64) []float64 {
	return n.nn.Predict(state)
}

// Fit applies one gradient step pulling the network's output for the
// input toward the response.
func (n *Network) Fit(input, response []float64) {
	ex := training.Example{Input: input, Response: response}
	n.trainer.Train(n.nn, training.Examples{ex}, nil, 1)
}

// FitBatch applies Fit to each pair in order. Updates are sequential,
// so the pair order fully determines the resulting parameters.
func (n *Network) FitBatch(inputs, responses [][]float64) error {
	if len(inputs) != len(responses) {
		return fmt.Errorf("network: %d inputs vs %d responses", len(inputs), len(responses))
	}
	for i := range inputs {
		n.Fit(inputs[i], responses[i])
	}
	return nil
}

// Inputs returns the state vector width.
func (n *Network) Inputs() int {
	return n.cfg.Inputs
}

// Outputs returns the action count.
func (n *Network) Outputs() int {
	return n.cfg.Outputs
}

// HiddenLayout returns a copy of the hidden layer widths.
func (n *Network) HiddenLayout() []int {
	return append([]int(nil), n.cfg.Hidden...)
}

// SnapshotWeights copies out every synapse weight as
// [layer][neuron][input].
func (n *Network) SnapshotWeights() [][][]float64 {
	out := make([][][]float64, len(n.nn.Layers))
	for i, layer := range n.nn.Layers {
		out[i] = make([][]float64, len(layer.Neurons))
		for j, neuron := range layer.Neurons {
			out[i][j] = make([]float64, len(neuron.In))
			for k, syn := range neuron.In {
				out[i][j][k] = syn.Weight
			}
		}
	}
	return out
}

// RestoreWeights copies a snapshot back in. The snapshot must have been
// taken from a network of the same shape.
func (n *Network) RestoreWeights(weights [][][]float64) error {
	if len(weights) != len(n.nn.Layers) {
		return fmt.Errorf("network: snapshot has %d layers, network has %d",
			len(weights), len(n.nn.Layers))
	}
	for i, layer := range n.nn.Layers {
		if len(weights[i]) != len(layer.Neurons) {
			return fmt.Errorf("network: layer %d snapshot has %d neurons, network has %d",
				i, len(weights[i]), len(layer.Neurons))
		}
		for j, neuron := range layer.Neurons {
			if len(weights[i][j]) != len(neuron.In) {
				return fmt.Errorf("network: layer %d neuron %d snapshot has %d weights, network has %d",
					i, j, len(weights[i][j]), len(neuron.In))
			}
		}
	}
	for i, layer := range n.nn.Layers {
		for j, neuron := range layer.Neurons {
			for k := range neuron.In {
				neuron.In[k].Weight = weights[i][j][k]
			}
		}
	}
	return nil
}

// SyncFrom overwrites this network's parameters with the source's.
// Both must share a shape.
func (n *Network) SyncFrom(src *Network) error {
	return n.RestoreWeights(src.SnapshotWeights())
}
