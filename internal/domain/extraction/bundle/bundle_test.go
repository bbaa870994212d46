package bundle

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/extraction/entity"
)

const testVocab = "[PAD]\n[UNK]\n[CLS]\n[SEP]\nhsbc\ncard\n##s\n"

func testFS() fstest.MapFS {
	return fstest.MapFS{
		VocabFile:         {Data: []byte(testVocab)},
		SpecialTokensFile: {Data: []byte(`{"cls_token":"[CLS]","sep_token":{"content":"[SEP]","lstrip":false},"pad_token":"[PAD]","unk_token":"[UNK]"}`)},
		TokenizerFile:     {Data: []byte(`{"do_lower_case": true, "model_max_length": 128}`)},
		ModelConfigFile:   {Data: []byte(`{"num_labels":3,"vocab_size":7,"id2label":{"0":"O","1":"B-BANK","2":"I-BANK"}}`)},
	}
}

func newLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, nil))
}

func TestLoadFS(t *testing.T) {
	var logs bytes.Buffer
	b, err := LoadFS(testFS(), newLogger(&logs))
	require.NoError(t, err)

	assert.Equal(t, 7, b.Vocab.Size())
	assert.True(t, b.Lowercase)
	assert.Equal(t, []entity.Label{
		entity.OutsideLabel,
		{Prefix: entity.Begin, Category: entity.Bank},
		{Prefix: entity.Inside, Category: entity.Bank},
	}, b.Labels)
	assert.Equal(t, 2, b.Specials.CLSID)
	assert.Equal(t, 3, b.Specials.SEPID)
	assert.Equal(t, 0, b.Specials.PADID)
	assert.Equal(t, 1, b.Specials.UNKID)
	assert.NotContains(t, logs.String(), "WARN")
}

func TestLoadFS_Warnings(t *testing.T) {
	fsys := testFS()
	fsys[ModelConfigFile] = &fstest.MapFile{Data: []byte(`{"num_labels":1,"vocab_size":30522,"id2label":{"0":"O"}}`)}
	fsys[TokenizerFile] = &fstest.MapFile{Data: []byte(`{"model_max_length": 128}`)}

	var logs bytes.Buffer
	b, err := LoadFS(fsys, newLogger(&logs))
	require.NoError(t, err)
	assert.False(t, b.Lowercase)
	assert.Contains(t, logs.String(), "vocabulary size does not match model config")
	assert.Contains(t, logs.String(), "no do_lower_case flag")

	logs.Reset()
	fsys[TokenizerFile] = &fstest.MapFile{Data: []byte(`not json`)}
	b, err = LoadFS(fsys, newLogger(&logs))
	require.NoError(t, err)
	assert.False(t, b.Lowercase)
	assert.Contains(t, logs.String(), "tokenizer config unparsable")
}

func TestLoadFS_Fatal(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(fstest.MapFS)
		target error
		substr string
	}{
		{
			name:   "missing vocabulary",
			mutate: func(f fstest.MapFS) { delete(f, VocabFile) },
			substr: "open vocabulary",
		},
		{
			name:   "empty vocabulary",
			mutate: func(f fstest.MapFS) { f[VocabFile] = &fstest.MapFile{Data: nil} },
			target: ErrEmptyVocabulary,
		},
		{
			name:   "missing special tokens",
			mutate: func(f fstest.MapFS) { delete(f, SpecialTokensFile) },
			substr: "read special tokens",
		},
		{
			name:   "unparsable special tokens",
			mutate: func(f fstest.MapFS) { f[SpecialTokensFile] = &fstest.MapFile{Data: []byte(`{`)} },
			substr: "parse special tokens",
		},
		{
			name:   "special token absent from vocabulary",
			mutate: func(f fstest.MapFS) { f[SpecialTokensFile] = &fstest.MapFile{Data: []byte(`{"unk_token":"<unk>"}`)} },
			target: ErrMissingSpecialToken,
		},
		{
			name:   "missing tokenizer config",
			mutate: func(f fstest.MapFS) { delete(f, TokenizerFile) },
			substr: "read tokenizer config",
		},
		{
			name:   "missing model config",
			mutate: func(f fstest.MapFS) { delete(f, ModelConfigFile) },
			substr: "read model config",
		},
		{
			name:   "unparsable model config",
			mutate: func(f fstest.MapFS) { f[ModelConfigFile] = &fstest.MapFile{Data: []byte(`[]`)} },
			substr: "parse model config",
		},
		{
			name: "label count mismatch",
			mutate: func(f fstest.MapFS) {
				f[ModelConfigFile] = &fstest.MapFile{Data: []byte(`{"num_labels":5,"id2label":{"0":"O","1":"B-BANK"}}`)}
			},
			target: ErrLabelMismatch,
		},
		{
			name: "gap in label ids",
			mutate: func(f fstest.MapFS) {
				f[ModelConfigFile] = &fstest.MapFile{Data: []byte(`{"id2label":{"0":"O","2":"B-BANK"}}`)}
			},
			target: ErrLabelMismatch,
		},
		{
			name: "unknown label",
			mutate: func(f fstest.MapFS) {
				f[ModelConfigFile] = &fstest.MapFile{Data: []byte(`{"id2label":{"0":"O","1":"B-PLANET"}}`)}
			},
			substr: "unknown label category",
		},
		{
			name:   "no labels",
			mutate: func(f fstest.MapFS) { f[ModelConfigFile] = &fstest.MapFile{Data: []byte(`{"num_labels":0}`)} },
			target: ErrNoLabels,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fsys := testFS()
			tc.mutate(fsys)
			_, err := LoadFS(fsys, newLogger(&bytes.Buffer{}))
			require.Error(t, err)
			if tc.target != nil {
				assert.ErrorIs(t, err, tc.target)
			}
			if tc.substr != "" {
				assert.Contains(t, err.Error(), tc.substr)
			}
		})
	}
}

func TestReadVocabulary(t *testing.T) {
	v, err := ReadVocabulary(strings.NewReader("a\r\nb\n\nb\nc"))
	require.NoError(t, err)
	assert.Equal(t, 5, v.Size())

	id, ok := v.ID("b")
	assert.True(t, ok)
	assert.Equal(t, 1, id)
	assert.False(t, v.Contains(""))

	tok, ok := v.Token(4)
	assert.True(t, ok)
	assert.Equal(t, "c", tok)
	_, ok = v.Token(5)
	assert.False(t, ok)
}

func TestNew(t *testing.T) {
	vocab := NewVocabulary([]string{"[PAD]", "[UNK]", "[CLS]", "[SEP]"})
	b, err := New(vocab, DefaultSpecialTokens, false, []entity.Label{entity.OutsideLabel})
	require.NoError(t, err)
	assert.True(t, b.Specials.IsStructural("[PAD]"))
	assert.False(t, b.Specials.IsStructural("[UNK]"))

	_, err = New(vocab, DefaultSpecialTokens, false, nil)
	assert.ErrorIs(t, err, ErrNoLabels)

	_, err = New(NewVocabulary([]string{"[PAD]"}), DefaultSpecialTokens, false, []entity.Label{entity.OutsideLabel})
	assert.ErrorIs(t, err, ErrMissingSpecialToken)
}
