package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic(t *testing.T) {
	got, err := Static{Reply: "[1,2]"}.Generate(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, "[1,2]", got)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Static{Reply: "x"}.Generate(ctx, "p")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFailing(t *testing.T) {
	_, err := Failing{}.Generate(context.Background(), "p")
	assert.ErrorIs(t, err, ErrUnavailable)

	boom := errors.New("boom")
	_, err = Failing{Err: boom}.Translate(context.Background(), "hola", "es")
	assert.ErrorIs(t, err, boom)
}

func TestLimiter_Unlimited(t *testing.T) {
	l := NewLimiter(0, 0)
	calls := 0
	g := l.Generator(GeneratorFunc(func(context.Context, string) (string, error) {
		calls++
		return "ok", nil
	}))

	start := time.Now()
	for i := 0; i < 50; i++ {
		_, err := g.Generate(context.Background(), "p")
		require.NoError(t, err)
	}
	assert.Equal(t, 50, calls)
	assert.Less(t, time.Since(start), time.Second)
}

func TestLimiter_RespectsContext(t *testing.T) {
	l := NewLimiter(0.001, 1)
	tr := l.Translator(TranslatorFunc(func(_ context.Context, text, _ string) (Translation, error) {
		return Translation{Text: text}, nil
	}))

	_, err := tr.Translate(context.Background(), "first", "fr")
	require.NoError(t, err, "burst allows the first call")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = tr.Translate(ctx, "second", "fr")
	assert.Error(t, err)
}

func TestLimiter_NilWaits(t *testing.T) {
	var l *Limiter
	assert.NoError(t, l.Wait(context.Background()))
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct{ in, want string }{
		{"[1,2]", "[1,2]"},
		{"```json\n[1, 2]\n```", "[1, 2]"},
		{"```\n{\"a\":1}\n```", "{\"a\":1}"},
		{"  ```[3]```  ", "[3]"},
		{"no fence at all", "no fence at all"},
	}
	for _, tt := range tests {
		in, want := tt.in, tt.want
		assert.Equal(t, want, StripCodeFence(in), in)
	}
}

func TestExtractJSON(t *testing.T) {
	got, ok := ExtractJSON("Sure! Here are my picks: [2, 5, 1]. Hope that helps.", '[', ']')
	require.True(t, ok)
	assert.Equal(t, "[2, 5, 1]", got)

	got, ok = ExtractJSON("```json\n{\"translation\":\"hi\"}\n```", '{', '}')
	require.True(t, ok)
	assert.Equal(t, `{"translation":"hi"}`, got)

	_, ok = ExtractJSON("nothing here", '[', ']')
	assert.False(t, ok)
}

func TestExtractJSON_FirstCompleteValue(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"trailing bracketed prose", "[1, 2] from [1..20]", "[1, 2]"},
		{"leading bracketed prose", "Picking from [1..20]: [4, 2]", "[4, 2]"},
		{"nested", "[[1], [2]] done", "[[1], [2]]"},
		{"object with trailing text", `{"text":"hi"} (translated from {de})`, `{"text":"hi"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			open, close := tt.want[0], tt.want[len(tt.want)-1]
			got, ok := ExtractJSON(tt.in, open, close)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := ExtractJSON("[1, 2", '[', ']')
	assert.False(t, ok)
}
