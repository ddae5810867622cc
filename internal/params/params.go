// Package params loads, validates and exports versioned parameter tables for
// the scheduling engine.
//
// A table is a JSON document:
//
//	{"version": "v6.0.0", "weights": {"initial_stability_again": 0.212, ...}}
//
// The weights may also be given as the conventional 21-element array.
package params

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/abhisek/memora/internal/spacedrep"
)

//go:embed schema.json
var schemaDoc []byte

const schemaURL = "schema://memora/parameters.json"

// schemaCache caches the compiled table schema.
var schemaCache sync.Map // map[string]*jsonschema.Schema

// ErrInvalidTable reports a parameter table that cannot be used. It matches
// spacedrep.ErrConfig with errors.Is.
type ErrInvalidTable struct {
	Source string
	Err    error
}

func (e *ErrInvalidTable) Error() string {
	return fmt.Sprintf("invalid parameter table %s: %v", e.Source, e.Err)
}

func (e *ErrInvalidTable) Unwrap() []error { return []error{spacedrep.ErrConfig, e.Err} }

type document struct {
	Version     string          `json:"version"`
	Description string          `json:"description,omitempty"`
	Weights     json.RawMessage `json:"weights"`
}

// Load reads and validates the table at path.
func Load(path string) (spacedrep.Parameters, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return spacedrep.Parameters{}, fmt.Errorf("read parameter table: %w", err)
	}
	return parse(path, data)
}

// Parse validates data against the table schema, decodes it and checks the
// version and weight bounds.
func Parse(data []byte) (spacedrep.Parameters, error) {
	return parse("<input>", data)
}

func parse(source string, data []byte) (spacedrep.Parameters, error) {
	invalid := func(err error) (spacedrep.Parameters, error) {
		return spacedrep.Parameters{}, &ErrInvalidTable{Source: source, Err: err}
	}

	var parsed any
	if err := json.Unmarshal(data, &parsed); err != nil {
		return invalid(fmt.Errorf("invalid JSON: %w", err))
	}

	compiled, err := getCompiledSchema()
	if err != nil {
		return spacedrep.Parameters{}, err
	}
	if err := compiled.Validate(parsed); err != nil {
		return invalid(fmt.Errorf("schema validation failed: %w", err))
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return invalid(err)
	}
	weights, err := decodeWeights(doc.Weights)
	if err != nil {
		return invalid(err)
	}

	p := spacedrep.Parameters{Version: doc.Version, Weights: weights}
	if err := p.Validate(); err != nil {
		return invalid(err)
	}
	return p, nil
}

func decodeWeights(raw json.RawMessage) (spacedrep.Weights, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var v [spacedrep.WeightCount]float64
		if err := json.Unmarshal(raw, &v); err != nil {
			return spacedrep.Weights{}, fmt.Errorf("decode weight vector: %w", err)
		}
		return spacedrep.WeightsFromVector(v), nil
	}
	var w spacedrep.Weights
	if err := json.Unmarshal(raw, &w); err != nil {
		return spacedrep.Weights{}, fmt.Errorf("decode weights: %w", err)
	}
	return w, nil
}

// Export writes p as an indented JSON table with named weights. The output
// loads back with Load.
func Export(w io.Writer, p spacedrep.Parameters) error {
	if err := p.Validate(); err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}

// getCompiledSchema returns the cached compiled schema or compiles and caches it.
func getCompiledSchema() (*jsonschema.Schema, error) {
	if cached, ok := schemaCache.Load(schemaURL); ok {
		return cached.(*jsonschema.Schema), nil
	}

	// The jsonschema library expects a parsed JSON value (any), not raw bytes.
	var def any
	if err := json.Unmarshal(schemaDoc, &def); err != nil {
		return nil, fmt.Errorf("parse table schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, def); err != nil {
		return nil, fmt.Errorf("add resource: %w", err)
	}
	compiled, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}

	schemaCache.Store(schemaURL, compiled)
	return compiled, nil
}
