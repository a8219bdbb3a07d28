package domain

import "fmt"

// TaskNotFoundError is returned when a task ID does not exist.
type TaskNotFoundError struct {
	TaskID string
}

func (e *TaskNotFoundError) Error() string {
	return fmt.Sprintf("task not found: %s", e.TaskID)
}

// ConfigError is returned when a required setting is missing or invalid.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config %q: %s", e.Field, e.Reason)
}

// CapExceededError is returned when a seed run generates more tasks than its profile allows.
type CapExceededError struct {
	Profile   string
	Generated int
	Cap       int
}

func (e *CapExceededError) Error() string {
	return fmt.Sprintf("seed profile %q generated %d tasks, exceeding cap of %d", e.Profile, e.Generated, e.Cap)
}

// MissingIdentityError is returned when a lead carries no field that can
// key it in the store.
type MissingIdentityError struct {
	Source string
}

func (e *MissingIdentityError) Error() string {
	return fmt.Sprintf("lead from %s has no identity to key on", e.Source)
}

// UnknownProviderError is returned when no provider is registered under a name or task type.
type UnknownProviderError struct {
	Key string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("no provider registered for %q", e.Key)
}
