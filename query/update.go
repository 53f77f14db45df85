package query

import "go.mongodb.org/mongo-driver/bson"

const setOperator = "$set"

var updateOperators = map[string]struct{}{
	"$set":         {},
	"$unset":       {},
	"$inc":         {},
	"$mul":         {},
	"$rename":      {},
	"$min":         {},
	"$max":         {},
	"$currentDate": {},
	"$setOnInsert": {},
	"$push":        {},
	"$pull":        {},
	"$pullAll":     {},
	"$addToSet":    {},
	"$pop":         {},
	"$bit":         {},
}

// HasUpdateOperator reports whether any top-level key of update is an update operator.
func HasUpdateOperator(update bson.D) bool {
	for _, e := range update {
		if _, ok := updateOperators[e.Key]; ok {
			return true
		}
	}
	return false
}

// NormalizeUpdate wraps a bare field assignment document in $set. Documents that
// already carry an update operator are returned as they are, valid or not.
func NormalizeUpdate(update bson.D) bson.D {
	if HasUpdateOperator(update) {
		return update
	}
	if update == nil {
		update = bson.D{}
	}
	return bson.D{{Key: setOperator, Value: update}}
}
