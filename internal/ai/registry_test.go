package ai

import (
	"errors"
	"strings"
	"testing"
)

func TestNewRegistry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		def     string
		models  []Model
		wantErr string
		wantDef string
	}{
		{name: "empty", wantErr: "must not be empty"},
		{name: "duplicate", models: []Model{{ID: "a"}, {ID: "a"}}, wantErr: "duplicate"},
		{name: "unknown default", def: "z", models: []Model{{ID: "a"}}, wantErr: "not in the registry"},
		{name: "first is default", models: []Model{{ID: "a"}, {ID: "b"}}, wantDef: "a"},
		{name: "explicit default", def: "b", models: []Model{{ID: "a"}, {ID: "b"}}, wantDef: "b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r, err := NewRegistry(tt.def, tt.models...)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if r.Default() != tt.wantDef {
				t.Fatalf("expected default %q, got %q", tt.wantDef, r.Default())
			}
		})
	}
}

func TestRegistryValidate(t *testing.T) {
	r, err := NewRegistry("", DefaultModels()...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := r.Validate("gemini-2.5-pro"); err != nil {
		t.Fatalf("expected registered model to validate, got %v", err)
	}

	err = r.Validate("unknown-model-x")
	if !errors.Is(err, ErrUnsupportedModel) {
		t.Fatalf("expected ErrUnsupportedModel, got %v", err)
	}
	if !strings.Contains(err.Error(), "gemini-2.5-flash") {
		t.Fatalf("expected available models in message, got %v", err)
	}

	m, ok := r.Lookup("gemini-2.5-flash")
	if !ok || m.Provider != "Google" {
		t.Fatalf("unexpected lookup result: %+v %v", m, ok)
	}
}
