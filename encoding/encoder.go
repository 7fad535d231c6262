package encoding

import (
	"github.com/cockroachdb/errors"
	jsonenc "github.com/effective-security/reagent/encoding/json"
)

type SchemaEncoder interface {
	Marshal(req any) ([]byte, error)
	Unmarshal([]byte, any) error
	// GetFormatInstructions returns the wrapped message with message schema for the prompt
	GetFormatInstructions() string
}

type Validator interface {
	Validate(any) error
}

type Mode = string

const (
	ModeJSON             Mode = "json"
	ModeJSONSchema       Mode = "json_schema"
	ModeJSONSchemaStrict Mode = "json_schema_strict" // Not all providers support this and all props must be required
)

// ModeDefault is the default mode for the encoder.
// Allow to override in apps
var ModeDefault = ModeJSONSchema

func PredefinedSchemaEncoder(mode Mode, req any) (SchemaEncoder, error) {
	switch mode {
	case ModeJSON, ModeJSONSchema, ModeJSONSchemaStrict:
		return jsonenc.NewEncoder(req)
	default:
		return nil, errors.New("no predefined encoder")
	}
}

var (
	_ SchemaEncoder = (*jsonenc.Encoder)(nil)
)
