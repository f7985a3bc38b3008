// Package schemas embeds the JSON Schemas for the artifacts evalgate reads
// and writes.
package schemas

import _ "embed"

//go:embed golden.schema.json
var GoldenSchemaJSON string

//go:embed report.schema.json
var ReportSchemaJSON string
