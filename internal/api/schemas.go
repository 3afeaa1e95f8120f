package api

import "github.com/uparkt/parkadmin/internal/schema"

const servicesSchemaDoc = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["services"],
  "properties": {
    "services": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "title", "services"],
        "properties": {
          "id": {"type": "integer"},
          "title": {"type": "string"},
          "services": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["id", "title", "id_category", "isActive"],
              "properties": {
                "id": {"type": "integer"},
                "title": {"type": "string"},
                "id_category": {"type": "integer"},
                "isActive": {"type": "boolean"}
              }
            }
          }
        }
      }
    }
  }
}`

var servicesSchema = schema.MustCompileSchema("parkadmin://schemas/services.json", servicesSchemaDoc)
