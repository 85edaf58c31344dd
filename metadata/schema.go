package metadata

import "github.com/santhosh-tekuri/jsonschema/v5"

const infoSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["dataset", "channels"],
  "properties": {
    "dataset": {
      "type": "object",
      "required": ["cube_dimension", "offset", "imagesize"],
      "properties": {
        "cube_dimension": {"$ref": "#/definitions/perResolution"},
        "offset": {"$ref": "#/definitions/perResolution"},
        "imagesize": {"$ref": "#/definitions/perResolution"},
        "resolutions": {"type": "array", "items": {"type": "integer"}}
      }
    },
    "channels": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "required": ["datatype"],
        "properties": {
          "datatype": {"type": "string"}
        }
      }
    }
  },
  "definitions": {
    "perResolution": {
      "type": "object",
      "propertyNames": {"pattern": "^[0-9]+$"},
      "additionalProperties": {
        "type": "array",
        "minItems": 3,
        "maxItems": 3,
        "items": {"type": "integer"}
      }
    }
  }
}`

func compileInfoSchema() (*jsonschema.Schema, error) {
	return jsonschema.CompileString("info.json", infoSchema)
}
