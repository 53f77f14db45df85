package docstore

import (
	"bytes"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsoncodec"
	"go.mongodb.org/mongo-driver/bson/bsonrw"
)

// ExtractID encodes entity with reg, the registry the collection writes with, and
// returns the value stored under IDKey. ok is false when the encoded document has no
// identity, which is how new entities look before the store assigns one.
func ExtractID(reg *bsoncodec.Registry, entity any) (id any, ok bool, err error) {
	doc, err := encodeDocument(reg, entity)
	if err != nil {
		return nil, false, err
	}

	for _, elem := range doc {
		if elem.Key == IDKey {
			return elem.Value, true, nil
		}
	}

	return nil, false, nil
}

func encodeDocument(reg *bsoncodec.Registry, entity any) (bson.D, error) {
	if reg == nil {
		reg = bson.DefaultRegistry
	}

	buf := new(bytes.Buffer)
	vw, err := bsonrw.NewBSONValueWriter(buf)
	if err != nil {
		return nil, err
	}

	enc, err := bson.NewEncoder(vw)
	if err != nil {
		return nil, err
	}
	if err := enc.SetRegistry(reg); err != nil {
		return nil, err
	}
	if err := enc.Encode(entity); err != nil {
		return nil, fmt.Errorf("failed to encode %T: %w", entity, err)
	}

	dec, err := bson.NewDecoder(bsonrw.NewBSONDocumentReader(buf.Bytes()))
	if err != nil {
		return nil, err
	}
	if err := dec.SetRegistry(reg); err != nil {
		return nil, err
	}

	var doc bson.D
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode %T: %w", entity, err)
	}

	return doc, nil
}

func idFilter(id any) bson.D {
	return bson.D{{Key: IDKey, Value: id}}
}
