package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
)

func TestSort_Document(t *testing.T) {
	s := By("lastname").And("age", Descending).And("name")
	assert.Equal(t, bson.D{
		{Key: "lastname", Value: 1},
		{Key: "age", Value: -1},
		{Key: "name", Value: 1},
	}, s.Document())
}

func TestSort_EmptyIsNil(t *testing.T) {
	assert.Nil(t, Sort{}.Document())
	assert.True(t, Sort{}.IsEmpty())
}

func TestSort_DirectionAppliesToAllColumns(t *testing.T) {
	s := By("a").And("b", Ascending).Descending()
	assert.Equal(t, bson.D{{Key: "a", Value: -1}, {Key: "b", Value: -1}}, s.Document())
	assert.Equal(t, bson.D{{Key: "a", Value: 1}, {Key: "b", Value: 1}}, s.Ascending().Document())
}

func TestSort_AndDoesNotAlias(t *testing.T) {
	base := By("a")
	left := base.And("b")
	right := base.And("c")
	assert.Equal(t, "b", left.Columns[1].Name)
	assert.Equal(t, "c", right.Columns[1].Name)
	assert.Len(t, base.Columns, 1)
}

func TestParseSort(t *testing.T) {
	s := ParseSort("-name", "+age", "city", "", "-")
	assert.Equal(t, []Column{
		{Name: "name", Direction: Descending},
		{Name: "age", Direction: Ascending},
		{Name: "city", Direction: Ascending},
	}, s.Columns)
}
