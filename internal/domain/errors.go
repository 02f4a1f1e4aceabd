package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("resource not found")
	ErrAlreadyExists = errors.New("resource already exists")
)

// EntityNotFoundError is returned when no entity with the given id exists.
type EntityNotFoundError struct {
	Entity string
	ID     string
}

func (e *EntityNotFoundError) Error() string {
	return fmt.Sprintf("%s '%s' not found", e.Entity, e.ID)
}

func (e *EntityNotFoundError) Unwrap() error { return ErrNotFound }

// EntityAlreadyExistsError is returned when a unique field collides with an existing entity.
type EntityAlreadyExistsError struct {
	Entity string
	Field  string
	Value  string
}

func (e *EntityAlreadyExistsError) Error() string {
	return fmt.Sprintf("%s with %s '%s' already exists", e.Entity, e.Field, e.Value)
}

func (e *EntityAlreadyExistsError) Unwrap() error { return ErrAlreadyExists }

func NewUserNotFound(id string) error {
	return &EntityNotFoundError{Entity: "user", ID: id}
}

func NewUserEmailTaken(email string) error {
	return &EntityAlreadyExistsError{Entity: "user", Field: "email", Value: email}
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsAlreadyExists(err error) bool { return errors.Is(err, ErrAlreadyExists) }
