// Package onnx runs the token-classification model in-process through ONNX Runtime.
package onnx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/extraction/classifier"
)

const (
	// LibraryEnv names the variable consulted when Config.LibraryPath is empty.
	LibraryEnv = "ONNXRUNTIME_SHARED_LIBRARY_PATH"

	defaultOutput = "logits"
)

var ErrClosed = errors.New("onnx classifier closed")

// Config describes one exported token-classification model.
type Config struct {
	ModelPath   string
	LibraryPath string
	SeqLen      int
	NumLabels   int
	// Sessions is the number of pooled sessions, one per concurrent Classify.
	Sessions     int
	IntraThreads int
}

type session struct {
	run      *ort.AdvancedSession
	inputIDs *ort.Tensor[int64]
	mask     *ort.Tensor[int64]
	typeIDs  *ort.Tensor[int64]
	output   *ort.Tensor[float32]
}

// Classifier holds a fixed pool of sessions bound to pre-allocated tensors.
type Classifier struct {
	cfg      Config
	sessions chan *session
	all      []*session
	logger   *slog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

var envOnce sync.Once
var envErr error

func initEnvironment(libPath string) error {
	envOnce.Do(func() {
		if libPath == "" {
			libPath = os.Getenv(LibraryEnv)
		}
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		if !ort.IsInitialized() {
			envErr = ort.InitializeEnvironment()
		}
	})
	return envErr
}

// New loads the model and allocates cfg.Sessions sessions.
func New(cfg Config, logger *slog.Logger) (*Classifier, error) {
	if cfg.ModelPath == "" {
		return nil, errors.New("onnx model path is empty")
	}
	if cfg.SeqLen <= 0 || cfg.NumLabels <= 0 {
		return nil, fmt.Errorf("onnx: invalid shape seq_len=%d num_labels=%d", cfg.SeqLen, cfg.NumLabels)
	}
	if cfg.Sessions <= 0 {
		cfg.Sessions = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	if err := initEnvironment(cfg.LibraryPath); err != nil {
		return nil, fmt.Errorf("initialize onnxruntime: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("read model io: %w", err)
	}
	withTypeIDs := slices.ContainsFunc(inputs, func(info ort.InputOutputInfo) bool {
		return info.Name == "token_type_ids"
	})
	outputName := defaultOutput
	if len(outputs) == 1 {
		outputName = outputs[0].Name
	}

	c := &Classifier{
		cfg:      cfg,
		sessions: make(chan *session, cfg.Sessions),
		logger:   logger,
		done:     make(chan struct{}),
	}
	for i := 0; i < cfg.Sessions; i++ {
		s, err := newSession(cfg, withTypeIDs, outputName)
		if err != nil {
			c.destroy()
			return nil, err
		}
		c.all = append(c.all, s)
		c.sessions <- s
	}

	logger.Info("onnx classifier ready",
		slog.String("model", cfg.ModelPath),
		slog.Int("sessions", cfg.Sessions),
		slog.Int("seq_len", cfg.SeqLen),
		slog.Bool("token_type_ids", withTypeIDs))
	return c, nil
}

func newSession(cfg Config, withTypeIDs bool, outputName string) (*session, error) {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	defer opts.Destroy()

	if err := opts.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableAll); err != nil {
		return nil, fmt.Errorf("set graph optimization: %w", err)
	}
	if cfg.IntraThreads > 0 {
		if err := opts.SetIntraOpNumThreads(cfg.IntraThreads); err != nil {
			return nil, fmt.Errorf("set intra threads: %w", err)
		}
	}

	s := &session{}
	shape := ort.NewShape(1, int64(cfg.SeqLen))
	if s.inputIDs, err = ort.NewEmptyTensor[int64](shape); err != nil {
		return nil, fmt.Errorf("allocate input_ids tensor: %w", err)
	}
	if s.mask, err = ort.NewEmptyTensor[int64](shape); err != nil {
		s.destroy()
		return nil, fmt.Errorf("allocate attention_mask tensor: %w", err)
	}
	names := []string{"input_ids", "attention_mask"}
	values := []ort.Value{s.inputIDs, s.mask}
	if withTypeIDs {
		if s.typeIDs, err = ort.NewEmptyTensor[int64](shape); err != nil {
			s.destroy()
			return nil, fmt.Errorf("allocate token_type_ids tensor: %w", err)
		}
		names = append(names, "token_type_ids")
		values = append(values, s.typeIDs)
	}
	if s.output, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(cfg.SeqLen), int64(cfg.NumLabels))); err != nil {
		s.destroy()
		return nil, fmt.Errorf("allocate output tensor: %w", err)
	}

	s.run, err = ort.NewAdvancedSession(cfg.ModelPath, names, []string{outputName}, values, []ort.Value{s.output}, opts)
	if err != nil {
		s.destroy()
		return nil, fmt.Errorf("create onnx session: %w", err)
	}
	return s, nil
}

func (s *session) destroy() {
	if s.run != nil {
		_ = s.run.Destroy()
	}
	for _, t := range []*ort.Tensor[int64]{s.inputIDs, s.mask, s.typeIDs} {
		if t != nil {
			_ = t.Destroy()
		}
	}
	if s.output != nil {
		_ = s.output.Destroy()
	}
}

// Classify borrows a session, copies the input into its tensors and runs the graph.
func (c *Classifier) Classify(ctx context.Context, in classifier.Input) ([][]float32, error) {
	if len(in.IDs) != c.cfg.SeqLen || len(in.Mask) != c.cfg.SeqLen {
		return nil, fmt.Errorf("%w: model expects %d positions, got %d", classifier.ErrShapeMismatch, c.cfg.SeqLen, len(in.IDs))
	}

	var s *session
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, ErrClosed
	case s = <-c.sessions:
	}
	defer func() { c.sessions <- s }()

	copy(s.inputIDs.GetData(), in.IDs)
	copy(s.mask.GetData(), in.Mask)
	if s.typeIDs != nil {
		types := s.typeIDs.GetData()
		if len(in.TypeIDs) == len(types) {
			copy(types, in.TypeIDs)
		} else {
			clear(types)
		}
	}

	if err := s.run.Run(); err != nil {
		return nil, fmt.Errorf("onnx run: %w", err)
	}
	return classifier.Rows(s.output.GetData(), c.cfg.SeqLen, c.cfg.NumLabels)
}

// Close waits for in-flight runs and releases every session.
func (c *Classifier) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		for range c.all {
			<-c.sessions
		}
		c.destroy()
	})
	return nil
}

func (c *Classifier) destroy() {
	for _, s := range c.all {
		s.destroy()
	}
	c.all = nil
}
