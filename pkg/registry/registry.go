// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mergington-activities/internal/activities"
	apperrors "mergington-activities/internal/common/errors"

	"github.com/xeipuuv/gojsonschema"
)

var seedSchemaLoader = gojsonschema.NewStringLoader(SeedSchema)

// Validate checks a seed document against SeedSchema.
func Validate(data []byte) error {
	result, err := gojsonschema.Validate(seedSchemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return apperrors.NewInvalidSeedError(err.Error())
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return apperrors.NewInvalidSeedError(strings.Join(msgs, "; "))
	}
	return nil
}

// Parse validates and decodes a seed document, keeping activity order.
func Parse(data []byte) (*activities.Catalog, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}
	var c activities.Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, apperrors.NewInvalidSeedError(err.Error())
	}
	return &c, nil
}

// LoadSeed reads and parses a seed file.
func LoadSeed(path string) (*activities.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed %s: %w", path, err)
	}
	return Parse(data)
}

// SaveSeed writes c to path as indented JSON, creating the directory if
// needed.
func SaveSeed(path string, c *activities.Catalog) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	var pretty strings.Builder
	enc := json.NewEncoder(&pretty)
	enc.SetIndent("", "  ")
	if err := enc.Encode(json.RawMessage(raw)); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create seed directory: %w", err)
	}
	return os.WriteFile(path, []byte(pretty.String()), 0o644)
}
