// Package docs holds the OpenAPI document served next to the Swagger UI.
package docs

import "embed"

// FS contains swagger.json at its root.
//
//go:embed swagger.json
var FS embed.FS
