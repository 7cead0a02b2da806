package mqtt

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const (
	desiredSchema = `{
	"type": "object",
	"properties": {
		"$version": {"type": "integer"}
	}
}`

	twinSchema = `{
	"type": "object",
	"required": ["desired"],
	"properties": {
		"desired": {"type": "object"},
		"reported": {"type": "object"}
	}
}`
)

var (
	desiredValidator = mustSchema(desiredSchema)
	twinValidator    = mustSchema(twinSchema)
)

func mustSchema(s string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic(err)
	}
	return schema
}

// ValidateDesired check a desired patch is an object with an
// optional integer $version.
func ValidateDesired(doc []byte) error {
	return validate(desiredValidator, doc)
}

// ValidateTwin check a full twin document.
func ValidateTwin(doc []byte) error {
	return validate(twinValidator, doc)
}

func validate(schema *gojsonschema.Schema, doc []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return err
	}
	if result.Valid() {
		return nil
	}

	errs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		errs = append(errs, e.String())
	}
	return fmt.Errorf("invalid document: %s", strings.Join(errs, "; "))
}
