// Package form holds the per-application-code payload schemas. The engine
// treats form data as opaque JSON; this registry is the one place that knows
// which shape belongs to which code.
package form

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ErrNoDefinition is returned for a code with no registered schema.
var ErrNoDefinition = errors.New("no form definition")

// Definition describes the payload accepted for one application code.
type Definition struct {
	Code string
	// New returns a pointer to an empty schema struct.
	New func() interface{}
	// RequiredRouteName pins submissions without an explicit route to a
	// named route. Empty means the first configured route.
	RequiredRouteName string
}

// FieldError is one failed constraint.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// ValidationError lists every constraint the payload violated.
type ValidationError struct {
	Code   string
	Fields []FieldError
	Err    error
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 && e.Err != nil {
		return fmt.Sprintf("form %s: %v", e.Code, e.Err)
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + " (" + f.Rule + ")"
	}
	return fmt.Sprintf("form %s: invalid fields: %s", e.Code, strings.Join(parts, ", "))
}

func (e *ValidationError) Unwrap() error { return e.Err }

// crossFieldValidator is implemented by schemas with rules spanning fields.
type crossFieldValidator interface {
	Validate() error
}

// Registry maps application codes to form definitions.
type Registry struct {
	mu       sync.RWMutex
	defs     map[string]Definition
	validate *validator.Validate
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)
	return &Registry{
		defs:     make(map[string]Definition),
		validate: v,
	}
}

// Register adds or replaces a definition.
func (r *Registry) Register(def Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[def.Code] = def
}

// PinRoute sets the required route name for an already registered code.
func (r *Registry) PinRoute(code, routeName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	def, ok := r.defs[code]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoDefinition, code)
	}
	def.RequiredRouteName = routeName
	r.defs[code] = def
	return nil
}

// Lookup returns the definition for code.
func (r *Registry) Lookup(code string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[code]
	return def, ok
}

// Codes returns the registered codes, sorted.
func (r *Registry) Codes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	codes := make([]string, 0, len(r.defs))
	for c := range r.defs {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

// Decode parses raw into the schema for code and validates it.
func (r *Registry) Decode(code string, raw json.RawMessage) (interface{}, error) {
	def, ok := r.Lookup(code)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoDefinition, code)
	}

	payload := def.New()
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, payload); err != nil {
		return nil, &ValidationError{Code: code, Err: fmt.Errorf("malformed form data: %w", err)}
	}

	if err := r.validate.Struct(payload); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return nil, &ValidationError{Code: code, Fields: toFieldErrors(verrs), Err: err}
		}
		return nil, &ValidationError{Code: code, Err: err}
	}

	if cv, ok := payload.(crossFieldValidator); ok {
		if err := cv.Validate(); err != nil {
			return nil, &ValidationError{Code: code, Err: err}
		}
	}

	return payload, nil
}

// WellFormed checks only that raw is a JSON object, as drafts require.
func WellFormed(raw json.RawMessage) error {
	if len(raw) == 0 {
		return nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return fmt.Errorf("form data must be a JSON object: %w", err)
	}
	return nil
}

func toFieldErrors(verrs validator.ValidationErrors) []FieldError {
	out := make([]FieldError, len(verrs))
	for i, fe := range verrs {
		// Namespace is "ExpenseForm.items[0].amount"; drop the struct name.
		ns := fe.Namespace()
		if idx := strings.Index(ns, "."); idx >= 0 {
			ns = ns[idx+1:]
		}
		out[i] = FieldError{Field: ns, Rule: fe.Tag()}
	}
	return out
}
