// Package secret keeps the bearer token of a TCP-listening daemon in the
// operating system's keyring, with a file in the configuration directory
// as the fallback where no keyring service is available.
package secret

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrNotFound is returned when no store holds a secret.
var ErrNotFound = errors.New("secret: not found")

// Store holds one secret.
type Store interface {
	Get() (string, error)
	Set(secret string) error
	Delete() error
}

var randRead = rand.Read

// Generate returns a new random secret of 32 bytes, hex encoded.
func Generate() (string, error) {
	b := make([]byte, 32)
	if _, err := randRead(b); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Chain tries its stores in order.
type Chain []Store

// Get returns the secret of the first store that has one.
func (c Chain) Get() (string, error) {
	var errs []error
	for _, s := range c {
		v, err := s.Get()
		if err == nil && v != "" {
			return v, nil
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return "", fmt.Errorf("%w: %w", ErrNotFound, errors.Join(errs...))
	}
	return "", ErrNotFound
}

// Set writes to the first store that accepts the secret.
func (c Chain) Set(v string) error {
	var errs []error
	for _, s := range c {
		err := s.Set(v)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return errors.New("secret: no store configured")
	}
	return errors.Join(errs...)
}

// Delete removes the secret from every store. Stores without one are not
// an error.
func (c Chain) Delete() error {
	var errs []error
	for _, s := range c {
		if err := s.Delete(); err != nil && !errors.Is(err, ErrNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Ensure returns the stored secret, generating and storing one if none
// exists. created reports whether it was generated.
func Ensure(s Store) (v string, created bool, err error) {
	if v, err = s.Get(); err == nil {
		return v, false, nil
	}
	return Rotate(s)
}

// Rotate replaces the stored secret with a new one.
func Rotate(s Store) (string, bool, error) {
	v, err := Generate()
	if err != nil {
		return "", false, err
	}
	if err := s.Set(v); err != nil {
		return "", false, fmt.Errorf("store secret: %w", err)
	}
	return v, true, nil
}

// Default is the keyring entry for app with a file in dir behind it.
func Default(app, dir string) Chain {
	return Chain{NewKeyring(app), NewFile(dir)}
}
