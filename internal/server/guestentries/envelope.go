package guestentries

import (
	"fmt"

	"github.com/duncanmcclean/guest-entries/internal/common"
	"github.com/duncanmcclean/guest-entries/internal/cryptox"
)

// Hidden parameter names.
const (
	ParamCollection    = "_collection"
	ParamID            = "_id"
	ParamRedirect      = "_redirect"
	ParamErrorRedirect = "_error_redirect"
	ParamRequest       = "_request"
)

// Envelope is the opened set of hidden parameters. Empty strings mean the
// parameter was absent or sealed as cryptox.Empty.
type Envelope struct {
	Collection    string
	ID            string
	Redirect      string
	ErrorRedirect string
	Request       string
}

// EnvelopeOptions controls how OpenEnvelope treats the raw values.
type EnvelopeOptions struct {
	// Insecure takes values verbatim instead of unsealing them.
	Insecure bool
	// RequireID rejects envelopes without an entry id.
	RequireID bool
}

// OpenEnvelope unseals the hidden parameters of a submission. Every
// parameter that is present must unseal; one bad token fails the whole
// envelope with common.ErrTampered. A missing collection, or a missing id
// when RequireID is set, fails the same way.
func OpenEnvelope(o Opener, fields map[string]any, opts EnvelopeOptions) (*Envelope, error) {
	open := func(key string) (string, error) {
		raw, ok := fields[key]
		if !ok || raw == nil {
			return "", nil
		}
		token, ok := raw.(string)
		if !ok {
			return "", fmt.Errorf("%w: %s is not a scalar", common.ErrTampered, key)
		}
		if token == "" {
			return "", nil
		}

		value := token
		if !opts.Insecure {
			v, err := o.Open(token)
			if err != nil {
				return "", fmt.Errorf("%s: %w", key, err)
			}
			value = v
		}
		if value == cryptox.Empty {
			return "", nil
		}
		return value, nil
	}

	env := &Envelope{}
	targets := []struct {
		key string
		dst *string
	}{
		{ParamCollection, &env.Collection},
		{ParamID, &env.ID},
		{ParamRedirect, &env.Redirect},
		{ParamErrorRedirect, &env.ErrorRedirect},
		{ParamRequest, &env.Request},
	}
	for _, t := range targets {
		v, err := open(t.key)
		if err != nil {
			return nil, err
		}
		*t.dst = v
	}

	if env.Collection == "" {
		return nil, fmt.Errorf("%w: missing %s", common.ErrTampered, ParamCollection)
	}
	if opts.RequireID && env.ID == "" {
		return nil, fmt.Errorf("%w: missing %s", common.ErrTampered, ParamID)
	}
	return env, nil
}

// FormParams are the hidden parameters a template embeds in a form.
type FormParams struct {
	Collection    string
	ID            string
	Redirect      string
	ErrorRedirect string
	Request       string
}

// SealFormParams returns hidden input name => value for every parameter.
// Absent values are sealed as cryptox.Empty so tampering with them is
// still detected. With insecure set the values are emitted in clear text.
func SealFormParams(s Sealer, p FormParams, insecure bool) (map[string]string, error) {
	in := map[string]string{
		ParamCollection:    p.Collection,
		ParamID:            p.ID,
		ParamRedirect:      p.Redirect,
		ParamErrorRedirect: p.ErrorRedirect,
		ParamRequest:       p.Request,
	}

	out := make(map[string]string, len(in))
	for name, value := range in {
		if value == "" {
			value = cryptox.Empty
		}
		if insecure {
			out[name] = value
			continue
		}
		sealed, err := s.Seal(value)
		if err != nil {
			return nil, fmt.Errorf("seal %s: %w", name, err)
		}
		out[name] = sealed
	}
	return out, nil
}
