// Package bundle loads the model-side collaborators of the extractor: the vocabulary,
// the special-token map, the tokenizer flags and the classifier's label table.
package bundle

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strconv"

	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/extraction/entity"
)

const (
	VocabFile         = "vocab.txt"
	SpecialTokensFile = "special_tokens_map.json"
	TokenizerFile     = "tokenizer_config.json"
	ModelConfigFile   = "config.json"
)

var (
	ErrEmptyVocabulary     = errors.New("vocabulary is empty")
	ErrMissingSpecialToken = errors.New("special token not in vocabulary")
	ErrLabelMismatch       = errors.New("label count does not match num_labels")
	ErrNoLabels            = errors.New("model config declares no labels")
)

// SpecialTokens are the structural tokens and their ids.
type SpecialTokens struct {
	CLS, SEP, PAD, UNK         string
	CLSID, SEPID, PADID, UNKID int
}

// DefaultSpecialTokens are the BERT structural token strings.
var DefaultSpecialTokens = SpecialTokens{CLS: "[CLS]", SEP: "[SEP]", PAD: "[PAD]", UNK: "[UNK]"}

// IsStructural reports whether tok is the start, end or padding marker.
func (s SpecialTokens) IsStructural(tok string) bool {
	return tok == s.CLS || tok == s.SEP || tok == s.PAD
}

// Resolve looks up the ids of the special tokens in v.
func (s SpecialTokens) Resolve(v *Vocabulary) (SpecialTokens, error) {
	for _, p := range []struct {
		tok string
		id  *int
	}{
		{s.CLS, &s.CLSID},
		{s.SEP, &s.SEPID},
		{s.PAD, &s.PADID},
		{s.UNK, &s.UNKID},
	} {
		id, ok := v.ID(p.tok)
		if !ok {
			return s, fmt.Errorf("%w: %q", ErrMissingSpecialToken, p.tok)
		}
		*p.id = id
	}
	return s, nil
}

// Bundle is everything the tokenizer and decoder need from the model directory.
type Bundle struct {
	Vocab     *Vocabulary
	Specials  SpecialTokens
	Lowercase bool
	Labels    []entity.Label
}

// New assembles a bundle from in-memory parts, resolving the special token ids.
func New(vocab *Vocabulary, specials SpecialTokens, lowercase bool, labels []entity.Label) (*Bundle, error) {
	if vocab == nil || vocab.Size() == 0 {
		return nil, ErrEmptyVocabulary
	}
	if len(labels) == 0 {
		return nil, ErrNoLabels
	}
	resolved, err := specials.Resolve(vocab)
	if err != nil {
		return nil, err
	}
	return &Bundle{Vocab: vocab, Specials: resolved, Lowercase: lowercase, Labels: labels}, nil
}

// Load reads a bundle from a model directory.
func Load(dir string, logger *slog.Logger) (*Bundle, error) {
	return LoadFS(os.DirFS(dir), logger)
}

// LoadFS reads a bundle from fsys. Missing or unreadable files, unparsable special-token
// or model config, and a label table that disagrees with num_labels are errors. A vocabulary
// size that disagrees with the model config and an unusable tokenizer config are logged.
func LoadFS(fsys fs.FS, logger *slog.Logger) (*Bundle, error) {
	if logger == nil {
		logger = slog.Default()
	}

	vocabFile, err := fsys.Open(VocabFile)
	if err != nil {
		return nil, fmt.Errorf("open vocabulary: %w", err)
	}
	defer vocabFile.Close()
	vocab, err := ReadVocabulary(vocabFile)
	if err != nil {
		return nil, err
	}

	specials, err := readSpecialTokens(fsys)
	if err != nil {
		return nil, err
	}
	specials, err = specials.Resolve(vocab)
	if err != nil {
		return nil, err
	}

	lowercase, err := readLowercase(fsys, logger)
	if err != nil {
		return nil, err
	}

	cfg, err := readModelConfig(fsys)
	if err != nil {
		return nil, err
	}
	labels, err := cfg.labels()
	if err != nil {
		return nil, err
	}
	if cfg.VocabSize > 0 && cfg.VocabSize != vocab.Size() {
		logger.Warn("vocabulary size does not match model config",
			"vocab_size", vocab.Size(),
			"declared_vocab_size", cfg.VocabSize,
		)
	}

	logger.Info("model bundle loaded",
		"vocab_size", vocab.Size(),
		"labels", len(labels),
		"lowercase", lowercase,
	)

	return &Bundle{
		Vocab:     vocab,
		Specials:  specials,
		Lowercase: lowercase,
		Labels:    labels,
	}, nil
}

func readSpecialTokens(fsys fs.FS) (SpecialTokens, error) {
	data, err := fs.ReadFile(fsys, SpecialTokensFile)
	if err != nil {
		return SpecialTokens{}, fmt.Errorf("read special tokens: %w", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return SpecialTokens{}, fmt.Errorf("parse special tokens: %w", err)
	}

	specials := DefaultSpecialTokens
	for key, dst := range map[string]*string{
		"cls_token": &specials.CLS,
		"sep_token": &specials.SEP,
		"pad_token": &specials.PAD,
		"unk_token": &specials.UNK,
	} {
		msg, ok := raw[key]
		if !ok {
			continue
		}
		tok, err := tokenContent(msg)
		if err != nil {
			return SpecialTokens{}, fmt.Errorf("parse special tokens %s: %w", key, err)
		}
		if tok != "" {
			*dst = tok
		}
	}
	return specials, nil
}

// tokenContent accepts both "[CLS]" and {"content": "[CLS]", ...}.
func tokenContent(msg json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(msg, &s); err == nil {
		return s, nil
	}
	var obj struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(msg, &obj); err != nil {
		return "", err
	}
	return obj.Content, nil
}

func readLowercase(fsys fs.FS, logger *slog.Logger) (bool, error) {
	data, err := fs.ReadFile(fsys, TokenizerFile)
	if err != nil {
		return false, fmt.Errorf("read tokenizer config: %w", err)
	}
	var cfg struct {
		DoLowerCase *bool `json:"do_lower_case"`
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		logger.Warn("tokenizer config unparsable, lower-casing disabled", "error", err)
		return false, nil
	}
	if cfg.DoLowerCase == nil {
		logger.Warn("tokenizer config has no do_lower_case flag, lower-casing disabled")
		return false, nil
	}
	return *cfg.DoLowerCase, nil
}

type modelConfig struct {
	NumLabels int               `json:"num_labels"`
	ID2Label  map[string]string `json:"id2label"`
	VocabSize int               `json:"vocab_size"`
}

func readModelConfig(fsys fs.FS) (*modelConfig, error) {
	data, err := fs.ReadFile(fsys, ModelConfigFile)
	if err != nil {
		return nil, fmt.Errorf("read model config: %w", err)
	}
	var cfg modelConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse model config: %w", err)
	}
	return &cfg, nil
}

// labels orders id2label by numeric id. Ids must be exactly 0..n-1.
func (c *modelConfig) labels() ([]entity.Label, error) {
	if len(c.ID2Label) == 0 {
		return nil, ErrNoLabels
	}
	if c.NumLabels > 0 && c.NumLabels != len(c.ID2Label) {
		return nil, fmt.Errorf("%w: id2label has %d entries, num_labels is %d", ErrLabelMismatch, len(c.ID2Label), c.NumLabels)
	}

	ids := make([]int, 0, len(c.ID2Label))
	byID := make(map[int]string, len(c.ID2Label))
	for k, v := range c.ID2Label {
		id, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("parse model config: label id %q: %w", k, err)
		}
		ids = append(ids, id)
		byID[id] = v
	}
	sort.Ints(ids)

	labels := make([]entity.Label, len(ids))
	for i, id := range ids {
		if id != i {
			return nil, fmt.Errorf("%w: label ids are not contiguous at %d", ErrLabelMismatch, i)
		}
		label, err := entity.ParseLabel(byID[id])
		if err != nil {
			return nil, fmt.Errorf("parse model config: %w", err)
		}
		labels[i] = label
	}
	return labels, nil
}
