// ABOUTME: JSON Schema reflection for the fabric spec document
// ABOUTME: Served by the API and printed by the CLI so editors can validate specs

package services

import (
	"github.com/invopop/jsonschema"
	"github.com/markalston/fabric-planner/backend/models"
)

// SpecSchema reflects the JSON Schema of models.FabricSpec
func SpecSchema() *jsonschema.Schema {
	reflector := &jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := reflector.Reflect(&models.FabricSpec{})
	schema.Title = "Fabric spec"
	schema.Description = "Declarative spine/leaf fabric description"
	return schema
}
