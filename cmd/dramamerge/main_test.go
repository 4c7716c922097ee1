package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backmassage/dramamerge/internal/catalog"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	a := &app{}
	t.Cleanup(a.close)
	root := a.rootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--no-color", "--log-level", "error"}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "dramamerge "+version)
}

func TestMergeRequiresSource(t *testing.T) {
	_, err := execute(t, "merge")
	assert.Error(t, err)
}

func TestLookupWithoutKey(t *testing.T) {
	_, err := execute(t, "lookup", "繁花")
	assert.ErrorIs(t, err, catalog.ErrNoAPIKey)
}

func TestUnknownConfigFile(t *testing.T) {
	_, err := execute(t, "--config", "/nonexistent/config.yaml", "version")
	assert.Error(t, err)
}
