package module

// ManifestSchema is the JSON Schema for module manifest validation
const ManifestSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["id", "version", "type"],
  "properties": {
    "id": {
      "type": "string",
      "pattern": "^[a-z0-9][a-z0-9_-]*$",
      "description": "Unique module identifier"
    },
    "version": {
      "type": "string",
      "pattern": "^\\d+\\.\\d+\\.\\d+$",
      "description": "Semver version"
    },
    "type": {
      "type": "string",
      "enum": ["knowledge", "capability", "identity", "memory"]
    },
    "size_tokens": {
      "type": "integer",
      "minimum": 1
    },
    "metadata": {
      "type": "object",
      "properties": {
        "name": { "type": "string" },
        "description": { "type": "string" },
        "size_tokens": { "type": "integer", "minimum": 1 }
      }
    },
    "dependencies": {
      "type": "array",
      "items": { "type": "string", "minLength": 1 }
    },
    "conflicts": {
      "type": "array",
      "items": { "type": "string", "minLength": 1 }
    },
    "triggers": {
      "type": "object",
      "properties": {
        "keywords": {
          "type": "array",
          "items": { "type": "string" }
        }
      }
    },
    "content": {
      "type": "object",
      "additionalProperties": {
        "type": "array",
        "items": { "type": "string", "minLength": 1 }
      }
    }
  }
}`
