package admitter

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/daniel-olson-code/pipeline/pkg/types"
)

// LoadBundle decodes a JSON document of the shape:
//
//	{"steps": {"<id>": {...StepDef...}, ...}, "starters": ["<id>", ...]}
//
// into a types.Bundle. This is a deserializer, not a pipeline-source
// parser: the DSL/source-to-bundle step stays out of scope, this only
// reads the bundle a parser would have already produced. A step entry
// keyed by an empty string with no id of its own gets a generated id,
// since a bundle author authoring by hand may leave both blank rather
// than invent one.
func LoadBundle(r io.Reader) (*types.Bundle, error) {
	var bundle types.Bundle
	if err := json.NewDecoder(r).Decode(&bundle); err != nil {
		return nil, fmt.Errorf("load bundle: %w", err)
	}

	steps := make(map[string]*types.StepDef, len(bundle.Steps))
	for id, def := range bundle.Steps {
		if id == "" && def.ID == "" {
			id = uuid.NewString()
			def.ID = id
		}
		if def.ID == "" {
			def.ID = id
		}
		if def.ID != id {
			return nil, fmt.Errorf("load bundle: step key %q does not match definition id %q", id, def.ID)
		}
		steps[id] = def
	}
	bundle.Steps = steps

	return &bundle, nil
}
