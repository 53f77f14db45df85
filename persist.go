package docstore

import (
	"context"
	"fmt"
	"iter"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsoncodec"
	"go.mongodb.org/mongo-driver/mongo"
)

// WriteKind tells how one element of a write plan is written.
type WriteKind int

const (
	// InsertOp inserts an entity without identity; the store assigns one.
	InsertOp WriteKind = iota
	// ReplaceOrInsertOp replaces the document with the entity's identity, inserting
	// it when missing.
	ReplaceOrInsertOp
)

func (k WriteKind) String() string {
	switch k {
	case InsertOp:
		return "insert"
	case ReplaceOrInsertOp:
		return "replace-or-insert"
	default:
		return fmt.Sprintf("WriteKind(%d)", int(k))
	}
}

// WriteOp is one element of a write plan. Filter is nil for inserts.
type WriteOp struct {
	Kind   WriteKind
	Filter bson.D
	Entity any
}

// WritePlan is an ordered batch of writes; it is submitted as one ordered bulk write,
// so the store stops at the first failing element.
type WritePlan []WriteOp

// BuildWritePlan derives one write per entity, in input order.
func BuildWritePlan[T any](reg *bsoncodec.Registry, entities []T) (WritePlan, error) {
	plan := make(WritePlan, 0, len(entities))
	for i, entity := range entities {
		id, ok, err := ExtractID(reg, entity)
		if err != nil {
			return nil, fmt.Errorf("entity %d: %w", i, err)
		}

		if !ok {
			plan = append(plan, WriteOp{Kind: InsertOp, Entity: entity})
			continue
		}
		plan = append(plan, WriteOp{Kind: ReplaceOrInsertOp, Filter: idFilter(id), Entity: entity})
	}

	return plan, nil
}

// Models converts the plan into driver write models, preserving order.
func (p WritePlan) Models() []mongo.WriteModel {
	return Map([]WriteOp(p), func(op WriteOp) mongo.WriteModel {
		if op.Kind == ReplaceOrInsertOp {
			return mongo.NewReplaceOneModel().
				SetFilter(op.Filter).
				SetReplacement(op.Entity).
				SetUpsert(true)
		}
		return mongo.NewInsertOneModel().SetDocument(op.Entity)
	})
}

func (r *repository[T]) Persist(ctx context.Context, entity T) error {
	_, err := r.collection.InsertOne(ctx, entity)
	return err
}

// PersistAll inserts every entity with one insert-many call.
func (r *repository[T]) PersistAll(ctx context.Context, entities ...T) error {
	if len(entities) == 0 {
		return nil
	}
	docs := Map(entities, func(entity T) any {
		return entity
	})
	_, err := r.collection.InsertMany(ctx, docs)
	return err
}

func (r *repository[T]) PersistSeq(ctx context.Context, entities iter.Seq[T]) error {
	return r.PersistAll(ctx, Collect(entities)...)
}

// Update replaces the stored document that has the entity's identity. Entities without
// identity fail with ErrMissingID before reaching the store.
func (r *repository[T]) Update(ctx context.Context, entity T) error {
	id, ok, err := ExtractID(r.collection.Registry(), entity)
	if err != nil {
		return err
	}
	if !ok {
		return ErrMissingID
	}

	res, err := r.collection.ReplaceOne(ctx, idFilter(id), entity, false)
	if err != nil {
		return err
	}
	if res != nil && res.MatchedCount == 0 {
		r.logger.Debug("update matched no document", "id", id)
	}
	return nil
}

// UpdateAll replaces entities one by one in input order and stops at the first
// failure. Earlier replacements stay applied.
func (r *repository[T]) UpdateAll(ctx context.Context, entities ...T) error {
	for i, entity := range entities {
		if err := r.Update(ctx, entity); err != nil {
			if len(entities) == 1 {
				return err
			}
			return fmt.Errorf("entity %d: %w", i, err)
		}
	}
	return nil
}

func (r *repository[T]) UpdateSeq(ctx context.Context, entities iter.Seq[T]) error {
	return r.UpdateAll(ctx, Collect(entities)...)
}

// PersistOrUpdate inserts an entity without identity and upserts one that has it.
func (r *repository[T]) PersistOrUpdate(ctx context.Context, entity T) error {
	id, ok, err := ExtractID(r.collection.Registry(), entity)
	if err != nil {
		return err
	}

	if !ok {
		_, err = r.collection.InsertOne(ctx, entity)
		return err
	}

	_, err = r.collection.ReplaceOne(ctx, idFilter(id), entity, true)
	return err
}

func (r *repository[T]) PersistOrUpdateAll(ctx context.Context, entities ...T) error {
	if len(entities) == 0 {
		return nil
	}

	plan, err := BuildWritePlan(r.collection.Registry(), entities)
	if err != nil {
		return err
	}

	res, err := r.collection.BulkWrite(ctx, plan.Models(), true)
	if err != nil {
		return err
	}
	if res != nil {
		r.logger.Debug("bulk write applied",
			"inserted", res.InsertedCount,
			"matched", res.MatchedCount,
			"upserted", res.UpsertedCount)
	}
	return nil
}

func (r *repository[T]) PersistOrUpdateSeq(ctx context.Context, entities iter.Seq[T]) error {
	return r.PersistOrUpdateAll(ctx, Collect(entities)...)
}

// Delete removes the document with the entity's identity. An entity without identity
// deletes by a null identity, which normally matches nothing.
func (r *repository[T]) Delete(ctx context.Context, entity T) error {
	id, _, err := ExtractID(r.collection.Registry(), entity)
	if err != nil {
		return err
	}

	_, err = r.collection.DeleteOne(ctx, idFilter(id))
	return err
}
