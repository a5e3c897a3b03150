package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema.json
var profileSchema []byte

// LoadProfile loads, schema-validates and parses a profile from a YAML
// file.
func LoadProfile(path string) (*Profile, error) {
	// Use os.OpenRoot to prevent path traversal through the profile path.
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open profile directory: %w", err)
	}
	defer func() {
		_ = root.Close()
	}()

	file, err := root.Open(base)
	if err != nil {
		return nil, fmt.Errorf("failed to open profile: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	return LoadProfileFromReader(file)
}

// LoadProfileFromReader loads a profile from an io.Reader.
func LoadProfileFromReader(r io.Reader) (*Profile, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}

	if err := validateSchema(raw); err != nil {
		return nil, err
	}

	var profile Profile
	if err := yaml.Unmarshal(raw, &profile); err != nil {
		return nil, fmt.Errorf("failed to decode profile YAML: %w", err)
	}
	if err := profile.Validate(); err != nil {
		return nil, fmt.Errorf("profile validation failed: %w", err)
	}
	return &profile, nil
}

// validateSchema checks the raw YAML document against the embedded profile
// schema before typed decoding, so misspelled keys fail loudly instead of
// silently granting nothing.
func validateSchema(raw []byte) error {
	// The schema validator wants JSON-decoded values, so convert first.
	jsonRaw, err := yaml.YAMLToJSON(raw)
	if err != nil {
		return fmt.Errorf("failed to parse profile YAML: %w", err)
	}
	var doc any
	if err := json.Unmarshal(jsonRaw, &doc); err != nil {
		return fmt.Errorf("failed to parse profile document: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource("profile.json", bytes.NewReader(profileSchema)); err != nil {
		return fmt.Errorf("failed to add profile schema: %w", err)
	}
	schema, err := compiler.Compile("profile.json")
	if err != nil {
		return fmt.Errorf("failed to compile profile schema: %w", err)
	}

	if err := schema.Validate(doc); err != nil {
		if validationErr, ok := err.(*jsonschema.ValidationError); ok {
			return formatSchemaError(validationErr)
		}
		return fmt.Errorf("profile schema validation failed: %w", err)
	}
	return nil
}

func formatSchemaError(err *jsonschema.ValidationError) error {
	var messages []string
	var collect func(*jsonschema.ValidationError)
	collect = func(e *jsonschema.ValidationError) {
		if e.Message != "" {
			location := e.InstanceLocation
			if location == "" {
				location = "(root)"
			}
			messages = append(messages, fmt.Sprintf("%s: %s", location, e.Message))
		}
		for _, cause := range e.Causes {
			collect(cause)
		}
	}
	collect(err)

	if len(messages) == 0 {
		return fmt.Errorf("profile schema validation failed")
	}
	return fmt.Errorf("profile schema validation failed:\n  - %s", strings.Join(messages, "\n  - "))
}
