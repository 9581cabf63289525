package guestentries

import (
	"errors"
	"testing"

	"github.com/duncanmcclean/guest-entries/internal/common"
	"github.com/duncanmcclean/guest-entries/internal/cryptox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSealer(t *testing.T) *cryptox.Sealer {
	t.Helper()
	s, err := cryptox.NewSealer([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func sealedFields(t *testing.T, s Sealer, p FormParams) map[string]any {
	t.Helper()
	hidden, err := SealFormParams(s, p, false)
	require.NoError(t, err)
	fields := make(map[string]any, len(hidden))
	for k, v := range hidden {
		fields[k] = v
	}
	return fields
}

func TestOpenEnvelope_RoundTrip(t *testing.T) {
	s := newTestSealer(t)
	fields := sealedFields(t, s, FormParams{
		Collection: "comments",
		ID:         "e1",
		Redirect:   "/thanks",
	})

	env, err := OpenEnvelope(s, fields, EnvelopeOptions{RequireID: true})
	require.NoError(t, err)
	assert.Equal(t, &Envelope{Collection: "comments", ID: "e1", Redirect: "/thanks"}, env)
}

func TestOpenEnvelope_AbsentParamsAreOptional(t *testing.T) {
	s := newTestSealer(t)
	token, err := s.Seal("comments")
	require.NoError(t, err)

	env, err := OpenEnvelope(s, map[string]any{ParamCollection: token, ParamRedirect: ""}, EnvelopeOptions{})
	require.NoError(t, err)
	assert.Equal(t, "comments", env.Collection)
	assert.Empty(t, env.Redirect)
}

func TestOpenEnvelope_Failures(t *testing.T) {
	s := newTestSealer(t)
	other, err := cryptox.NewSealer([]byte("other-secret"))
	require.NoError(t, err)

	good := sealedFields(t, s, FormParams{Collection: "comments", ID: "e1"})
	foreignRedirect, err := other.Seal("https://evil.example")
	require.NoError(t, err)

	tests := []struct {
		name   string
		fields map[string]any
		opts   EnvelopeOptions
	}{
		{
			name:   "missing collection",
			fields: map[string]any{},
		},
		{
			name:   "collection sealed as empty",
			fields: sealedFields(t, s, FormParams{}),
		},
		{
			name:   "clear text collection",
			fields: map[string]any{ParamCollection: "comments"},
		},
		{
			name: "one foreign token spoils the envelope",
			fields: map[string]any{
				ParamCollection: good[ParamCollection],
				ParamRedirect:   foreignRedirect,
			},
		},
		{
			name:   "non scalar value",
			fields: map[string]any{ParamCollection: []any{"a"}},
		},
		{
			name:   "missing id when required",
			fields: map[string]any{ParamCollection: good[ParamCollection]},
			opts:   EnvelopeOptions{RequireID: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := OpenEnvelope(s, tt.fields, tt.opts)
			assert.Nil(t, env)
			assert.True(t, errors.Is(err, common.ErrTampered), "got %v", err)
		})
	}
}

func TestOpenEnvelope_Insecure(t *testing.T) {
	env, err := OpenEnvelope(nil, map[string]any{
		ParamCollection: "comments",
		ParamID:         "e1",
		ParamRedirect:   cryptox.Empty,
	}, EnvelopeOptions{Insecure: true, RequireID: true})
	require.NoError(t, err)
	assert.Equal(t, &Envelope{Collection: "comments", ID: "e1"}, env)
}

func TestSealFormParams(t *testing.T) {
	s := newTestSealer(t)

	hidden, err := SealFormParams(s, FormParams{Collection: "comments"}, false)
	require.NoError(t, err)
	require.Len(t, hidden, 5)
	assert.NotEqual(t, "comments", hidden[ParamCollection])

	empty, err := s.Open(hidden[ParamRedirect])
	require.NoError(t, err)
	assert.Equal(t, cryptox.Empty, empty)

	clear, err := SealFormParams(s, FormParams{Collection: "comments"}, true)
	require.NoError(t, err)
	assert.Equal(t, "comments", clear[ParamCollection])
	assert.Equal(t, cryptox.Empty, clear[ParamID])
}
