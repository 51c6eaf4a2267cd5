package models

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetModelsDir(t *testing.T) {
	tests := []struct {
		name           string
		explicitDir    string
		envVar         string
		expectedResult string
	}{
		{
			name:           "explicit directory takes precedence",
			explicitDir:    "/explicit/path",
			envVar:         "/env/path",
			expectedResult: "/explicit/path",
		},
		{
			name:           "environment variable used when no explicit dir",
			envVar:         "/env/path",
			expectedResult: "/env/path",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvModelsDir, tt.envVar)
			assert.Equal(t, tt.expectedResult, GetModelsDir(tt.explicitDir))
		})
	}
}

func TestGetModelsDir_ProjectRootDefault(t *testing.T) {
	t.Setenv(EnvModelsDir, "")
	root, err := findProjectRoot()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, DefaultModelsDir), GetModelsDir(""))
}

func TestResolveClassifierPath(t *testing.T) {
	dir := t.TempDir()
	organized := filepath.Join(dir, TypeClassifier, SugarClassifier)
	require.NoError(t, os.MkdirAll(filepath.Dir(organized), 0o750))
	require.NoError(t, os.WriteFile(organized, []byte("onnx"), 0o600))

	t.Run("empty selects the heuristic", func(t *testing.T) {
		assert.Empty(t, ResolveClassifierPath(dir, ""))
	})
	t.Run("explicit path is kept", func(t *testing.T) {
		p := filepath.Join("some", "where", "model.onnx")
		assert.Equal(t, p, ResolveClassifierPath(dir, p))
	})
	t.Run("bare name found in organized layout", func(t *testing.T) {
		assert.Equal(t, organized, ResolveClassifierPath(dir, SugarClassifier))
	})
	t.Run("bare name falls back to flat layout", func(t *testing.T) {
		assert.Equal(t, filepath.Join(dir, SugarClassifierLite), ResolveClassifierPath(dir, SugarClassifierLite))
	})
	t.Run("environment directory", func(t *testing.T) {
		t.Setenv(EnvModelsDir, dir)
		assert.Equal(t, organized, ResolveClassifierPath("", SugarClassifier))
	})
}

func TestValidateModelExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.onnx")
	require.Error(t, ValidateModelExists(path))
	require.NoError(t, os.WriteFile(path, nil, 0o600))
	assert.NoError(t, ValidateModelExists(path))
}
