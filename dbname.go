package docstore

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// DatabaseNameCache remembers the default database name of each client. Concurrent
// first lookups of the same client share one computation; entries live until Clear.
type DatabaseNameCache struct {
	names sync.Map
	group singleflight.Group
}

func NewDatabaseNameCache() *DatabaseNameCache {
	return &DatabaseNameCache{}
}

// Resolve returns the cached name for client, computing it with resolve on first use.
// Failed computations are not cached.
func (c *DatabaseNameCache) Resolve(client string, resolve func(client string) (string, error)) (string, error) {
	if name, ok := c.names.Load(client); ok {
		return name.(string), nil
	}

	v, err, _ := c.group.Do(client, func() (any, error) {
		if name, ok := c.names.Load(client); ok {
			return name, nil
		}

		name, err := resolve(client)
		if err != nil {
			return nil, err
		}

		c.names.Store(client, name)
		return name, nil
	})
	if err != nil {
		return "", err
	}

	return v.(string), nil
}

// Len reports the number of cached clients.
func (c *DatabaseNameCache) Len() int {
	n := 0
	c.names.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (c *DatabaseNameCache) Clear() {
	c.names.Clear()
}
