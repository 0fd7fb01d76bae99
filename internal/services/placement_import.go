package services

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"path/filepath"
	"strings"

	"quizinsight/internal/models"
	contextutils "quizinsight/internal/utils"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// ImportFormat is the encoding of a placement quiz set file
type ImportFormat string

// Supported import formats
const (
	ImportFormatJSON ImportFormat = "json"
	ImportFormatYAML ImportFormat = "yaml"
)

//go:embed schemas/placement_quiz_set.json
var placementSchemaJSON []byte

var placementSchema = mustLoadPlacementSchema()

func mustLoadPlacementSchema() *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(placementSchemaJSON))
	if err != nil {
		panic("invalid embedded placement schema: " + err.Error())
	}
	return schema
}

// FormatFromPath picks the import format from a file extension, defaulting to JSON
func FormatFromPath(path string) ImportFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ImportFormatYAML
	default:
		return ImportFormatJSON
	}
}

// ParsePlacementImport decodes and validates a placement quiz set.
// YAML is normalized to JSON first so both formats pass the same schema.
// Any structural problem is reported as MALFORMED_IMPORT.
func ParsePlacementImport(data []byte, format ImportFormat) (*models.PlacementQuizSetImport, error) {
	var doc []byte
	switch format {
	case ImportFormatJSON:
		doc = data
	case ImportFormatYAML:
		var generic interface{}
		if err := yaml.Unmarshal(data, &generic); err != nil {
			return nil, contextutils.MalformedImportf("invalid YAML: %v", err)
		}
		converted, err := json.Marshal(generic)
		if err != nil {
			return nil, contextutils.MalformedImportf("YAML document cannot be represented as JSON: %v", err)
		}
		doc = converted
	default:
		return nil, contextutils.InvalidInputf("unsupported import format %q", format)
	}

	result, err := placementSchema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return nil, contextutils.MalformedImportf("invalid JSON: %v", err)
	}
	if !result.Valid() {
		var problems []string
		for _, e := range result.Errors() {
			problems = append(problems, e.Field()+": "+e.Description())
		}
		return nil, contextutils.MalformedImportf("schema validation failed: %s", strings.Join(problems, "; "))
	}

	var set models.PlacementQuizSetImport
	dec := json.NewDecoder(bytes.NewReader(doc))
	if err := dec.Decode(&set); err != nil {
		return nil, contextutils.MalformedImportf("failed to decode placement set: %v", err)
	}

	if err := ValidatePlacementSet(&set); err != nil {
		return nil, err
	}
	return &set, nil
}
