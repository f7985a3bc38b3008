package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/namel3ss/evalgate/schemas"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// defaultPrinter is used to format schema validation error messages.
var defaultPrinter = message.NewPrinter(language.English)

// goldenSchema is the compiled JSON Schema for golden dataset files.
var goldenSchema *jsonschema.Schema

// reportSchema is the compiled JSON Schema for evaluation reports.
var reportSchema *jsonschema.Schema

func init() {
	goldenSchema = mustCompileSchema(schemas.GoldenSchemaJSON, "golden.schema.json")
	reportSchema = mustCompileSchema(schemas.ReportSchemaJSON, "report.schema.json")
}

func mustCompileSchema(raw string, name string) *jsonschema.Schema {
	var schemaDoc any
	if err := json.Unmarshal([]byte(raw), &schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to parse embedded %s: %v", name, err))
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to add %s resource: %v", name, err))
	}

	sch, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("failed to compile %s: %v", name, err))
	}
	return sch
}

// ValidateGoldenBytes validates raw golden dataset JSON against the golden schema.
func ValidateGoldenBytes(data []byte) []string {
	return validateJSONBytes(goldenSchema, data)
}

// ValidateReportBytes validates raw report JSON against the report schema.
func ValidateReportBytes(data []byte) []string {
	return validateJSONBytes(reportSchema, data)
}

// ValidateReportFile reads and validates a report file.
func ValidateReportFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report file: %w", err)
	}
	return ValidateReportBytes(data), nil
}

func validateJSONBytes(schema *jsonschema.Schema, data []byte) []string {
	// UnmarshalJSON keeps numbers as json.Number so "integer" checks stay exact.
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return []string{fmt.Sprintf("JSON parse error: %v", err)}
	}
	return validateAgainstSchema(schema, doc)
}

func validateAgainstSchema(schema *jsonschema.Schema, instance any) []string {
	err := schema.Validate(instance)
	if err == nil {
		return nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{fmt.Sprintf("schema: %v", err)}
	}
	var errs []string
	collectSchemaErrors(ve, &errs)
	return errs
}

func collectSchemaErrors(ve *jsonschema.ValidationError, errs *[]string) {
	if len(ve.Causes) == 0 {
		loc := "/"
		if len(ve.InstanceLocation) > 0 {
			loc = "/" + strings.Join(ve.InstanceLocation, "/")
		}
		*errs = append(*errs, fmt.Sprintf("%s: %s", loc, ve.ErrorKind.LocalizedString(defaultPrinter)))
		return
	}
	for _, c := range ve.Causes {
		collectSchemaErrors(c, errs)
	}
}
