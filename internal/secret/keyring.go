package secret

import (
	"errors"

	"github.com/zalando/go-keyring"
)

// Keyring stores the secret in the operating system's keyring.
type Keyring struct {
	Service string
	User    string
}

var (
	keyringSet    = keyring.Set
	keyringGet    = keyring.Get
	keyringDelete = keyring.Delete
)

func NewKeyring(service string) *Keyring {
	return &Keyring{
		Service: service,
		User:    "daemon",
	}
}

func (k *Keyring) Get() (string, error) {
	v, err := keyringGet(k.Service, k.User)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	return v, err
}

func (k *Keyring) Set(v string) error {
	return keyringSet(k.Service, k.User, v)
}

func (k *Keyring) Delete() error {
	err := keyringDelete(k.Service, k.User)
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
