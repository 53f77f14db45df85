package docstore

import (
	"context"
	"testing"

	"github.com/likearthian/docstore/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewZapLogger(t *testing.T) {
	_, err := NewZapLogger(LogConfig{Level: "debug", Format: "json"})
	assert.NoError(t, err)

	_, err = NewZapLogger(LogConfig{Level: "WARN", Format: "text"})
	assert.NoError(t, err)

	_, err = NewZapLogger(LogConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestRepository_TracesBoundTemplates(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewZapLoggerFrom(zap.New(core))

	coll := newFakeCollection()
	repo := newTestRepository(t, coll, WithLogger(logger))

	_, err := repo.Find("Name = ?1", query.Args{"Ada"})
	require.NoError(t, err)

	_, err = repo.UpdateFields("{'count': :c}", query.With("c", int32(3)))
	require.NoError(t, err)

	entries := logs.All()
	require.Len(t, entries, 2)

	assert.Equal(t, "bound filter", entries[0].Message)
	assert.Equal(t, map[string]any{"collection": "test.items", "query": `Name = "Ada"`}, entries[0].ContextMap())

	assert.Equal(t, "bound update", entries[1].Message)
	assert.Equal(t, `{'count': {"$numberInt":"3"}}`, entries[1].ContextMap()["query"])
}

func TestRepository_TracesNothingOnBindingError(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	repo := newTestRepository(t, newFakeCollection(), WithLogger(NewZapLoggerFrom(zap.New(core))))

	_, err := repo.Count(context.Background(), "Name = :n", query.Parameters{})
	require.Error(t, err)
	assert.Zero(t, logs.Len())
}

func TestRepository_TracesUpdateOnSyntaxError(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	repo := newTestRepository(t, newFakeCollection(), WithLogger(NewZapLoggerFrom(zap.New(core))))

	_, err := repo.UpdateFields("{'count': ?1", query.Args{int32(3)})
	require.ErrorIs(t, err, query.ErrSyntax)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "bound update", entries[0].Message)
	assert.Equal(t, `{'count': {"$numberInt":"3"}`, entries[0].ContextMap()["query"])
}

func TestNopLogger(t *testing.T) {
	l := NopLogger()
	l.Debug("x", "k", 1)
	l.With("k", 2).Error("y")
}
