package static

import (
	"encoding/json"
	"testing"
)

func TestStaticValidator(t *testing.T) {
	raw := json.RawMessage(`{"token":"t-1","subject":"arbiter-1","scopes":["stream"],"raw":{"role":"ARBITER"}}`)
	v, err := NewValidatorFromJSON(raw)
	if err != nil {
		t.Fatalf("NewValidatorFromJSON: %v", err)
	}

	claims, err := v.Validate("t-1")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.Subject != "arbiter-1" {
		t.Fatalf("expected subject arbiter-1, got %q", claims.Subject)
	}
	if !claims.HasScope("stream") {
		t.Fatalf("expected scope present")
	}

	if _, err := v.Validate("wrong"); err == nil {
		t.Fatalf("expected validation error for wrong token")
	}
}

func TestStaticValidator_StringConfig(t *testing.T) {
	raw := json.RawMessage(`"t-2"`)
	v, err := NewValidatorFromJSON(raw)
	if err != nil {
		t.Fatalf("NewValidatorFromJSON: %v", err)
	}
	if _, err := v.Validate("t-2"); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	claims, _ := v.Validate("t-2")
	if claims.Subject != "static" {
		t.Fatalf("expected default subject, got %q", claims.Subject)
	}
}

func TestStaticValidator_MissingToken(t *testing.T) {
	if _, err := NewValidatorFromJSON(json.RawMessage(`{}`)); err == nil {
		t.Fatalf("expected error for missing token")
	}
}
