// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package translate

import (
	"context"
	"errors"
	"testing"

	"github.com/pdiddy/foursight/internal/llm"
	"github.com/stretchr/testify/assert"
)

func TestDictionary_Translate(t *testing.T) {
	d := NewDictionary()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"english untouched", "artificial intelligence in healthcare", "artificial intelligence in healthcare"},
		{"english with indicators", "the future of learning", "the future of learning"},
		{"single word untouched", "saúde", "saúde"},
		{"empty", "", ""},
		{"full phrase", "inteligência artificial na saúde", "artificial intelligence in healthcare"},
		{"phrase keeps leading capital", "Inteligência Artificial na Educação", "Artificial intelligence in education"},
		{"unaccented phrase", "blockchain na saude", "blockchain in healthcare"},
		{"phrase then words", "aprendizado de máquina para diagnóstico", "machine learning for diagnosis"},
		{"word capitalization", "Tecnologia e inovação", "Technology and innovation"},
		{"punctuation preserved", "saúde, educação!", "health, education!"},
		{"plural forms", "plataformas para alunos", "platforms for students"},
		{"unknown tokens pass through", "quantum computação", "quantum computação"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.Translate(context.Background(), tt.in, ""))
		})
	}
}

func TestDictionary_IsTarget(t *testing.T) {
	d := NewDictionary()
	assert.True(t, d.IsTarget("tools for the classroom"))
	assert.True(t, d.IsTarget("blockchain"))
	assert.False(t, d.IsTarget("artificial intelligence in healthcare"), "one indicator is below the threshold")
	assert.False(t, d.IsTarget("tecnologia na escola"))
	assert.False(t, d.IsTarget("theory and practice"), "indicators match whole words only")
}

func TestDictionary_LongestPhraseWins(t *testing.T) {
	d := &Dictionary{
		Phrases: map[string]string{
			"ia":             "ai",
			"ia na educação": "ai in education",
		},
		Threshold: 2,
	}
	assert.Equal(t, "ai in education", d.TranslateText("ia na educação"))
}

func TestLLM_UsesModel(t *testing.T) {
	var prompt string
	c := llm.CompleterFunc(func(_ context.Context, p string, _ int) (string, error) {
		prompt = p
		return "\"remote teaching tools\"\nextra line", nil
	})
	tr := NewLLM(c, nil, nil)

	got := tr.Translate(context.Background(), "ferramentas de ensino remoto", "edtech startup")
	assert.Equal(t, "remote teaching tools", got)
	assert.Contains(t, prompt, "ferramentas de ensino remoto")
	assert.Contains(t, prompt, "Context: edtech startup")
}

func TestLLM_FallsBackToDictionary(t *testing.T) {
	c := llm.CompleterFunc(func(context.Context, string, int) (string, error) {
		return "", errors.New("quota exceeded")
	})
	tr := NewLLM(c, nil, nil)

	assert.Equal(t, "blockchain in healthcare", tr.Translate(context.Background(), "blockchain na saúde", ""))
}

func TestLLM_SkipsEnglishInput(t *testing.T) {
	called := false
	c := llm.CompleterFunc(func(context.Context, string, int) (string, error) {
		called = true
		return "x", nil
	})
	tr := NewLLM(c, nil, nil)

	assert.Equal(t, "tools for the classroom", tr.Translate(context.Background(), "tools for the classroom", ""))
	assert.False(t, called)
}
