package docstore

import "errors"

var (
	ErrKeyAlreadyExists = errors.New("key already exists")
	ErrKeynotFound      = errors.New("key not found")
	ErrMissingID        = errors.New("entity has no identity")
	ErrNoResult         = errors.New("no result")
	ErrNotSingle        = errors.New("more than one result")
	ErrUnknownClient    = errors.New("unknown client")
	ErrNoDatabase       = errors.New("no database configured")
)
