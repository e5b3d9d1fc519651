// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package translate

import (
	"context"
	"fmt"
	"strings"

	"github.com/pdiddy/foursight/internal/llm"
	"go.uber.org/zap"
)

// translateTokens bounds the model's answer; queries are short.
const translateTokens = 128

const promptTemplate = `Translate the following search query into English.
Reply with the translated query only, no quotes and no explanation.
%sQuery: %s`

// LLM translates with a text-generation model and falls back to a
// Dictionary on any error or empty answer. Text the fallback already
// detects as English is never sent to the model.
type LLM struct {
	completer llm.Completer
	fallback  *Dictionary
	log       *zap.Logger
}

// NewLLM returns an LLM translator. A nil fallback uses NewDictionary.
func NewLLM(c llm.Completer, fallback *Dictionary, log *zap.Logger) *LLM {
	if fallback == nil {
		fallback = NewDictionary()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &LLM{completer: c, fallback: fallback, log: log.Named("translate")}
}

// Translate implements Translator. The hint, usually the business context,
// is passed to the model to disambiguate terms.
func (t *LLM) Translate(ctx context.Context, text, hint string) string {
	if strings.TrimSpace(text) == "" || t.fallback.IsTarget(text) {
		return text
	}

	var hintLine string
	if hint = strings.TrimSpace(hint); hint != "" {
		hintLine = fmt.Sprintf("Context: %s\n", hint)
	}
	out, err := t.completer.Complete(ctx, fmt.Sprintf(promptTemplate, hintLine, text), translateTokens)
	if err != nil {
		t.log.Warn("model translation failed, using dictionary", zap.String("query", text), zap.Error(err))
		return t.fallback.TranslateText(text)
	}

	out = cleanAnswer(out)
	if out == "" {
		return t.fallback.TranslateText(text)
	}
	t.log.Debug("translated query", zap.String("query", text), zap.String("translated", out))
	return out
}

// cleanAnswer keeps the first line of the model's answer without quotes.
func cleanAnswer(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimPrefix(s, "Query:")
	return strings.Trim(strings.TrimSpace(s), "\"'`")
}
