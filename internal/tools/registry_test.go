package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lookupArgs struct {
	Provider string `json:"provider" jsonschema:"enum=cloudflare,enum=google" validate:"oneof=cloudflare google"`
	Domain   string `json:"domain" jsonschema:"description=Domain name to resolve" validate:"required,hostname_rfc1123"`
	Type     string `json:"type,omitempty" jsonschema:"default=A"`
}

type emptyArgs struct{}

func newLookupTool(calls *[]lookupArgs) *Func[lookupArgs] {
	return NewFunc("lookup", "Resolve a domain", func(_ context.Context, in lookupArgs) (any, error) {
		*calls = append(*calls, in)
		return map[string]any{"domain": in.Domain}, nil
	})
}

func TestRegistry_KeepsRegistrationOrder(t *testing.T) {
	var calls []lookupArgs
	r := NewRegistry(
		NewFunc("zeta", "last letter", func(context.Context, emptyArgs) (any, error) { return nil, nil }),
		newLookupTool(&calls),
		NewFunc("alpha", "first letter", func(context.Context, emptyArgs) (any, error) { return nil, nil }),
	)

	assert.Equal(t, []string{"zeta", "lookup", "alpha"}, r.List())
	assert.Equal(t, 3, r.Count())

	specs := r.Specs()
	require.Len(t, specs, 3)
	assert.Equal(t, "lookup", specs[1].Name)
	assert.Equal(t, "Resolve a domain", specs[1].Description)
	assert.JSONEq(t, string(r.tools["lookup"].Parameters()), string(specs[1].InputSchema))
}

func TestRegistry_RejectsDuplicates(t *testing.T) {
	var calls []lookupArgs
	r := NewRegistry(newLookupTool(&calls))

	err := r.Register(newLookupTool(&calls))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")

	assert.Panics(t, func() { NewRegistry(newLookupTool(&calls), newLookupTool(&calls)) })
}

func TestRegistry_Dispatch(t *testing.T) {
	var calls []lookupArgs
	r := NewRegistry(newLookupTool(&calls))

	out, err := r.Dispatch(context.Background(), "lookup", json.RawMessage(`{"provider":"google","domain":"example.com"}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"domain": "example.com"}, out)
	require.Len(t, calls, 1)
	assert.Equal(t, "google", calls[0].Provider)

	_, err = r.Dispatch(context.Background(), "missing", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownTool))
	assert.Equal(t, "unknown tool: missing", err.Error())
}

func TestFunc_RejectsBadInput(t *testing.T) {
	var calls []lookupArgs
	tool := newLookupTool(&calls)

	tests := []struct {
		name string
		args string
	}{
		{name: "unknown field", args: `{"provider":"google","domain":"example.com","extra":1}`},
		{name: "enum violation", args: `{"provider":"opendns","domain":"example.com"}`},
		{name: "missing required", args: `{"provider":"google"}`},
		{name: "wrong type", args: `{"provider":"google","domain":42}`},
		{name: "not an object", args: `[1]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tool.Execute(context.Background(), json.RawMessage(tt.args))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
	assert.Empty(t, calls)
}

func TestFunc_EmptyArgsDecodeAsObject(t *testing.T) {
	called := 0
	tool := NewFunc("noop", "does nothing", func(context.Context, emptyArgs) (any, error) {
		called++
		return "ok", nil
	})

	for _, args := range []string{"", "null", "{}"} {
		out, err := tool.Execute(context.Background(), json.RawMessage(args))
		require.NoError(t, err)
		assert.Equal(t, "ok", out)
	}
	assert.Equal(t, 3, called)

	_, err := tool.Execute(context.Background(), json.RawMessage(`{"x":1}`))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSchemaFor(t *testing.T) {
	var schema map[string]any
	require.NoError(t, json.Unmarshal(SchemaFor[lookupArgs](), &schema))

	assert.Equal(t, "object", schema["type"])
	assert.NotContains(t, schema, "$schema")
	assert.Equal(t, false, schema["additionalProperties"])

	props := schema["properties"].(map[string]any)
	assert.Contains(t, props, "provider")
	assert.Contains(t, props, "domain")
	assert.Contains(t, props, "type")
	assert.Equal(t, []any{"cloudflare", "google"}, props["provider"].(map[string]any)["enum"])
	assert.Equal(t, "Domain name to resolve", props["domain"].(map[string]any)["description"])

	required := schema["required"].([]any)
	assert.ElementsMatch(t, []any{"provider", "domain"}, required)

	var empty map[string]any
	require.NoError(t, json.Unmarshal(SchemaFor[emptyArgs](), &empty))
	assert.Equal(t, "object", empty["type"])
	assert.Equal(t, map[string]any{}, empty["properties"])
}
