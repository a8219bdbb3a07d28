package domain_test

import (
	"strings"
	"testing"

	"github.com/ramiqadoumi/leadflow/internal/domain"
)

func TestTaskNotFoundError(t *testing.T) {
	err := &domain.TaskNotFoundError{TaskID: "abc-123"}
	if !strings.Contains(err.Error(), "abc-123") {
		t.Errorf("error message should contain task ID, got: %q", err.Error())
	}
}

func TestConfigError(t *testing.T) {
	err := &domain.ConfigError{Field: "countries", Reason: "unsupported country \"XX\""}
	msg := err.Error()
	if !strings.Contains(msg, "countries") {
		t.Errorf("error message should contain field, got: %q", msg)
	}
	if !strings.Contains(msg, "XX") {
		t.Errorf("error message should contain reason, got: %q", msg)
	}
}

func TestCapExceededError(t *testing.T) {
	err := &domain.CapExceededError{Profile: "small", Generated: 240, Cap: 100}
	msg := err.Error()
	for _, want := range []string{"small", "240", "100"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error message should contain %q, got: %q", want, msg)
		}
	}
}

func TestUnknownProviderError(t *testing.T) {
	err := &domain.UnknownProviderError{Key: "maps-search"}
	if !strings.Contains(err.Error(), "maps-search") {
		t.Errorf("error message should contain key, got: %q", err.Error())
	}
}

func TestMissingIdentityError(t *testing.T) {
	err := &domain.MissingIdentityError{Source: "outscraper"}
	if !strings.Contains(err.Error(), "outscraper") {
		t.Errorf("error message should contain source, got: %q", err.Error())
	}
}

func TestAllErrorTypesImplementError(t *testing.T) {
	var _ error = &domain.TaskNotFoundError{}
	var _ error = &domain.ConfigError{}
	var _ error = &domain.CapExceededError{}
	var _ error = &domain.UnknownProviderError{}
	var _ error = &domain.MissingIdentityError{}
}
