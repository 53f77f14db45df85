package docstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsoncodec"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Resolver returns the collection an entity is stored in.
type Resolver interface {
	Collection(entity *Entity) (Collection, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(entity *Entity) (Collection, error)

func (f ResolverFunc) Collection(entity *Entity) (Collection, error) {
	return f(entity)
}

// Store owns the configured clients and resolves entities to their collections.
type Store struct {
	cfg      MongoConfig
	registry *bsoncodec.Registry
	logger   Logger
	names    *DatabaseNameCache

	mu      sync.RWMutex
	clients map[string]*mongo.Client
	closed  bool
}

// Connect opens and pings every configured client. reg is shared by all clients and
// by identity extraction; nil selects the default registry.
func Connect(ctx context.Context, cfg MongoConfig, reg *bsoncodec.Registry, log Logger) (*Store, error) {
	if reg == nil {
		reg = bson.DefaultRegistry
	}

	clients := make(map[string]*mongo.Client)
	for _, name := range cfg.ClientNames() {
		client, _ := cfg.Client(name)
		mc, err := ConnectMongo(ctx, client.URI, reg, cfg.ConnectTimeout)
		if err != nil {
			for _, opened := range clients {
				_ = opened.Disconnect(context.Background())
			}
			return nil, fmt.Errorf("client %s: %w", name, err)
		}
		clients[name] = mc
	}

	s := NewStore(cfg, reg, log, clients)
	s.logger.Info("mongodb clients connected", "clients", s.ClientNames())
	return s, nil
}

// NewStore wraps already connected clients keyed by client name.
func NewStore(cfg MongoConfig, reg *bsoncodec.Registry, log Logger, clients map[string]*mongo.Client) *Store {
	if reg == nil {
		reg = bson.DefaultRegistry
	}
	if log == nil {
		log = NopLogger()
	}
	if clients == nil {
		clients = make(map[string]*mongo.Client)
	}

	return &Store{
		cfg:      cfg,
		registry: reg,
		logger:   log,
		names:    NewDatabaseNameCache(),
		clients:  clients,
	}
}

func (s *Store) Registry() *bsoncodec.Registry {
	return s.registry
}

func (s *Store) Logger() Logger {
	return s.logger
}

// DatabaseNames exposes the default database name cache.
func (s *Store) DatabaseNames() *DatabaseNameCache {
	return s.names
}

func (s *Store) ClientNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.clients))
	for name := range s.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Client returns the named client.
func (s *Store) Client(name string) (*mongo.Client, error) {
	if name == "" {
		name = DefaultClient
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errors.New("store is closed")
	}

	client, ok := s.clients[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownClient, name)
	}
	return client, nil
}

// Database resolves the database of an entity: its declared database, or the default
// database of its client.
func (s *Store) Database(entity *Entity) (string, error) {
	if entity.Database != "" {
		return entity.Database, nil
	}

	client := entity.Client
	if client == "" {
		client = DefaultClient
	}
	return s.names.Resolve(client, s.defaultDatabase)
}

func (s *Store) defaultDatabase(client string) (string, error) {
	cfg, ok := s.cfg.Client(client)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownClient, client)
	}
	if cfg.Database == "" {
		return "", fmt.Errorf("%w for client %s", ErrNoDatabase, client)
	}
	return cfg.Database, nil
}

func (s *Store) Collection(entity *Entity) (Collection, error) {
	client, err := s.Client(entity.Client)
	if err != nil {
		return nil, err
	}

	database, err := s.Database(entity)
	if err != nil {
		return nil, err
	}

	coll := client.Database(database).Collection(entity.Collection)
	return NewCollection(coll, s.registry, s.cfg.OperationTimeout), nil
}

// Ping checks every client against its primary.
func (s *Store) Ping(ctx context.Context) error {
	var errs []error
	for _, name := range s.ClientNames() {
		client, err := s.Client(name)
		if err != nil {
			return err
		}

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err = client.Ping(pingCtx, readpref.Primary())
		cancel()
		if err != nil {
			s.logger.Error("mongodb ping failed", "client", name, "error", err)
			errs = append(errs, fmt.Errorf("client %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Close disconnects every client and forgets cached database names.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	clients := s.clients
	s.mu.Unlock()

	s.names.Clear()

	var errs []error
	for name, client := range clients {
		if err := client.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to close client %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
