// Package models locates sugar classifier model files.
package models

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Well-known classifier model file names.
const (
	SugarClassifier     = "sugar_classifier.onnx"
	SugarClassifierLite = "sugar_classifier_lite.onnx"
)

// TypeClassifier is the subdirectory holding classifier models.
const TypeClassifier = "classifier"

// Default models directory.
const DefaultModelsDir = "models"

// Environment variable for models directory override.
const EnvModelsDir = "NUTRIGOOD_MODELS_DIR"

// findProjectRoot finds the project root by looking for go.mod.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", errors.New("could not find project root (go.mod not found)")
}

// GetModelsDir returns the models directory path from various sources.
// Priority: 1. Explicit modelsDir parameter, 2. Environment variable,
// 3. Project root + default.
func GetModelsDir(modelsDir string) string {
	if modelsDir != "" {
		return modelsDir
	}
	if envDir := os.Getenv(EnvModelsDir); envDir != "" {
		return envDir
	}
	if projectRoot, err := findProjectRoot(); err == nil {
		return filepath.Join(projectRoot, DefaultModelsDir)
	}
	return DefaultModelsDir
}

// ResolveClassifierPath turns a configured model reference into a file path.
//
// Empty stays empty (heuristic classifier). Paths with a directory component
// and names that exist relative to the working directory are returned as
// given. Bare file names are looked up in <models>/classifier first, then
// in the flat models directory.
func ResolveClassifierPath(modelsDir, model string) string {
	if model == "" {
		return ""
	}
	if strings.ContainsRune(model, filepath.Separator) || strings.ContainsRune(model, '/') {
		return model
	}
	if _, err := os.Stat(model); err == nil {
		return model
	}

	baseDir := GetModelsDir(modelsDir)
	organized := filepath.Join(baseDir, TypeClassifier, model)
	if _, err := os.Stat(organized); err == nil {
		return organized
	}
	return filepath.Join(baseDir, model)
}

// ValidateModelExists checks if a model file exists at the given path.
func ValidateModelExists(modelPath string) error {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", modelPath)
	}
	return nil
}
