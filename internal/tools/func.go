package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Func adapts a typed function into a Tool. The input schema is reflected
// from T and arguments are decoded strictly into T before fn runs.
type Func[T any] struct {
	name        string
	description string
	schema      json.RawMessage
	fn          func(context.Context, T) (any, error)
}

func NewFunc[T any](name, description string, fn func(context.Context, T) (any, error)) *Func[T] {
	return &Func[T]{
		name:        name,
		description: description,
		schema:      SchemaFor[T](),
		fn:          fn,
	}
}

func (f *Func[T]) Name() string                { return f.name }
func (f *Func[T]) Description() string         { return f.description }
func (f *Func[T]) Parameters() json.RawMessage { return f.schema }

func (f *Func[T]) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	in, err := DecodeArgs[T](args)
	if err != nil {
		return nil, err
	}
	return f.fn(ctx, in)
}

// DecodeArgs decodes args into T, rejecting unknown fields, and runs the
// struct's validate tags. Empty args decode as an empty object.
func DecodeArgs[T any](args json.RawMessage) (T, error) {
	var in T
	if len(bytes.TrimSpace(args)) == 0 || bytes.Equal(bytes.TrimSpace(args), []byte("null")) {
		args = json.RawMessage(`{}`)
	}

	dec := json.NewDecoder(bytes.NewReader(args))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		return in, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if reflect.TypeOf(in).Kind() == reflect.Struct {
		if err := validate.Struct(in); err != nil {
			return in, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}
	return in, nil
}

// SchemaFor reflects an inline JSON Schema object for T.
func SchemaFor[T any]() json.RawMessage {
	r := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	var zero T
	raw, err := json.Marshal(r.Reflect(zero))
	if err != nil {
		panic(fmt.Sprintf("reflect schema for %T: %v", zero, err))
	}

	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil {
		panic(fmt.Sprintf("decode schema for %T: %v", zero, err))
	}
	delete(schema, "$schema")
	delete(schema, "$id")
	if _, ok := schema["properties"]; !ok {
		schema["properties"] = map[string]any{}
	}

	out, _ := json.Marshal(schema)
	return out
}
