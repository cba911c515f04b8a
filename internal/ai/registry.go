package ai

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnsupportedModel = errors.New("unsupported model")

type Model struct {
	ID          string `json:"id" mapstructure:"id"`
	Name        string `json:"name" mapstructure:"name"`
	Description string `json:"description" mapstructure:"description"`
	Provider    string `json:"provider" mapstructure:"provider"`
}

// DefaultModels is the registry used when the configuration lists none.
func DefaultModels() []Model {
	return []Model{
		{ID: "gemini-2.5-flash", Name: "Gemini 2.5 Flash", Description: "Fast model with tool calling, good default for chat", Provider: "Google"},
		{ID: "gemini-2.5-pro", Name: "Gemini 2.5 Pro", Description: "Strongest reasoning, slower responses", Provider: "Google"},
		{ID: "gemini-2.0-flash", Name: "Gemini 2.0 Flash", Description: "Previous generation fast model", Provider: "Google"},
	}
}

// Registry is the fixed set of model identifiers a session may select.
type Registry struct {
	models []Model
	index  map[string]Model
	def    string
}

func NewRegistry(defaultID string, models ...Model) (*Registry, error) {
	if len(models) == 0 {
		return nil, errors.New("model registry must not be empty")
	}

	r := &Registry{index: make(map[string]Model, len(models))}
	for _, m := range models {
		m.ID = strings.TrimSpace(m.ID)
		if m.ID == "" {
			return nil, errors.New("model id must not be empty")
		}
		if _, dup := r.index[m.ID]; dup {
			return nil, fmt.Errorf("duplicate model id %q", m.ID)
		}
		if m.Name == "" {
			m.Name = m.ID
		}
		r.models = append(r.models, m)
		r.index[m.ID] = m
	}

	defaultID = strings.TrimSpace(defaultID)
	if defaultID == "" {
		defaultID = r.models[0].ID
	}
	if _, ok := r.index[defaultID]; !ok {
		return nil, fmt.Errorf("default model %q is not in the registry", defaultID)
	}
	r.def = defaultID

	return r, nil
}

func (r *Registry) Default() string { return r.def }

func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.models))
	for _, m := range r.models {
		ids = append(ids, m.ID)
	}
	return ids
}

func (r *Registry) Models() []Model {
	return append([]Model(nil), r.models...)
}

func (r *Registry) Lookup(id string) (Model, bool) {
	m, ok := r.index[id]
	return m, ok
}

// Validate returns ErrUnsupportedModel, listing the available ids, when id is
// not registered.
func (r *Registry) Validate(id string) error {
	if _, ok := r.index[id]; ok {
		return nil
	}
	return fmt.Errorf("%w %q, available models: %s", ErrUnsupportedModel, id, strings.Join(r.IDs(), ", "))
}
