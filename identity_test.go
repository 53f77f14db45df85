package docstore

import (
	"reflect"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsoncodec"
	"go.mongodb.org/mongo-driver/bson/bsonrw"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type code string

type coded struct {
	ID   code   `bson:"_id"`
	Name string `bson:"name"`
}

type document struct {
	ID   primitive.ObjectID `bson:"_id,omitempty"`
	Tags []string           `bson:"tags"`
}

func upperCodeRegistry() *bsoncodec.Registry {
	reg := bson.NewRegistry()
	reg.RegisterTypeEncoder(reflect.TypeOf(code("")), bsoncodec.ValueEncoderFunc(
		func(_ bsoncodec.EncodeContext, vw bsonrw.ValueWriter, val reflect.Value) error {
			return vw.WriteString(strings.ToUpper(val.String()))
		}))
	return reg
}

func TestExtractID(t *testing.T) {
	oid := primitive.NewObjectID()

	id, ok, err := ExtractID(nil, document{ID: oid})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, oid, id)

	id, ok, err = ExtractID(bson.DefaultRegistry, &item{ID: 42})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)

	id, ok, err = ExtractID(bson.DefaultRegistry, bson.M{"_id": "key", "x": 1})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "key", id)
}

func TestExtractID_Absent(t *testing.T) {
	id, ok, err := ExtractID(bson.DefaultRegistry, document{Tags: []string{"a"}})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, id)
}

func TestExtractID_UsesRegistry(t *testing.T) {
	entity := coded{ID: "abc", Name: "x"}

	id, _, err := ExtractID(bson.DefaultRegistry, entity)
	require.NoError(t, err)
	assert.Equal(t, "abc", id)

	id, _, err = ExtractID(upperCodeRegistry(), entity)
	require.NoError(t, err)
	assert.Equal(t, "ABC", id)
}

func TestExtractID_DoesNotMutate(t *testing.T) {
	entity := &document{Tags: []string{"a", "b"}}
	before := *entity

	_, _, err := ExtractID(bson.DefaultRegistry, entity)
	require.NoError(t, err)
	assert.Equal(t, before, *entity)
}

func TestExtractID_EncodingFailure(t *testing.T) {
	_, _, err := ExtractID(bson.DefaultRegistry, 42)
	assert.Error(t, err)
}

// The identity read back equals the identity of the document the driver writes for
// the same entity.
func TestProperty_ExtractIDMatchesMarshal(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 200
	properties := gopter.NewProperties(params)

	reg := upperCodeRegistry()
	marshaledID := func(entity any) (any, bool) {
		raw, err := bson.MarshalWithRegistry(reg, entity)
		if err != nil {
			return nil, false
		}
		var doc bson.D
		if err := bson.UnmarshalWithRegistry(reg, raw, &doc); err != nil {
			return nil, false
		}
		return lookup(doc, IDKey)
	}

	properties.Property("int64 identities", prop.ForAll(
		func(id int64, name string) bool {
			entity := item{ID: id, Name: name}
			got, ok, err := ExtractID(reg, entity)
			want, wantOK := marshaledID(entity)
			return err == nil && ok == wantOK && reflect.DeepEqual(got, want)
		},
		gen.Int64(),
		gen.AnyString(),
	))

	properties.Property("registry encoded identities", prop.ForAll(
		func(id string) bool {
			entity := coded{ID: code(id)}
			got, ok, err := ExtractID(reg, entity)
			want, wantOK := marshaledID(entity)
			return err == nil && ok && wantOK && reflect.DeepEqual(got, want)
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
