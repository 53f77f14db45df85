package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestTranslate_ObjectQuery(t *testing.T) {
	out, err := run(t, "translate", "name = :n", "--param", "n='Ada'")
	require.NoError(t, err)
	assert.Equal(t, "object-query: {\"name\":\"Ada\"}\n", out)
}

func TestTranslate_NativeWithArgs(t *testing.T) {
	out, err := run(t, "translate", "{'status': ?1}", "--arg", "active")
	require.NoError(t, err)
	assert.Equal(t, "native: {\"status\":\"active\"}\n", out)
}

func TestTranslate_FieldMapping(t *testing.T) {
	out, err := run(t, "translate", "firstName = ?1", "--arg", "'Ada'", "--field", "firstName=first_name")
	require.NoError(t, err)
	assert.Equal(t, "object-query: {\"first_name\":\"Ada\"}\n", out)

	_, err = run(t, "translate", "lastName = ?1", "--arg", "'Ada'", "--field", "firstName=first_name")
	assert.Error(t, err)
}

func TestTranslate_Update(t *testing.T) {
	out, err := run(t, "translate", "--update", "name = ?1", "--arg", "'Ada'")
	require.NoError(t, err)
	assert.Equal(t, "object-query: {\"$set\":{\"name\":\"Ada\"}}\n", out)
}

func TestTranslate_FlagErrors(t *testing.T) {
	_, err := run(t, "translate", "name = ?1", "--arg", "x", "--param", "n=1")
	assert.EqualError(t, err, "--arg and --param cannot be combined")

	_, err = run(t, "translate", "name = :n", "--param", "novalue")
	assert.Error(t, err)

	_, err = run(t, "translate", "name = :n", "--field", "broken")
	assert.Error(t, err)
}

func TestCount_RequiresCollection(t *testing.T) {
	_, err := run(t, "count")
	assert.Error(t, err)
}
