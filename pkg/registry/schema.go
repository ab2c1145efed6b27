// pkg/registry/schema.go
package registry

// SeedSchema is the JSON schema every seed file must satisfy. The document is
// the same shape GET /activities returns.
const SeedSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "Activities seed catalog",
  "type": "object",
  "minProperties": 1,
  "propertyNames": { "minLength": 1 },
  "additionalProperties": {
    "type": "object",
    "required": ["description", "schedule", "max_participants"],
    "additionalProperties": false,
    "properties": {
      "description": { "type": "string" },
      "schedule": { "type": "string" },
      "max_participants": { "type": "integer", "minimum": 1 },
      "participants": {
        "type": "array",
        "items": { "type": "string" },
        "uniqueItems": true
      }
    }
  }
}`
