package domain

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const serviceTokenParametersSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["tokenName"],
  "properties": {
    "tokenName": {"type": "string", "minLength": 1, "maxLength": 128},
    "scopes": {"type": "array", "items": {"type": "string", "minLength": 1}, "uniqueItems": true},
    "ttlSeconds": {"type": "integer", "minimum": 0}
  }
}`

const serviceTokenMappingSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["token", "tokenId"],
  "properties": {
    "token": {"$ref": "#/definitions/key"},
    "tokenId": {"$ref": "#/definitions/key"}
  },
  "definitions": {
    "key": {"type": "string", "pattern": "^[A-Za-z_][A-Za-z0-9_.-]*$"}
  }
}`

const databaseUserParametersSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["username1", "username2"],
  "properties": {
    "username1": {"type": "string", "minLength": 1, "maxLength": 63},
    "username2": {"type": "string", "minLength": 1, "maxLength": 63},
    "passwordLength": {"type": "integer", "minimum": 16, "maximum": 128}
  }
}`

const unixAccountParametersSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["username"],
  "properties": {
    "username": {"type": "string", "pattern": "^[a-z_][a-z0-9_-]{0,31}$"},
    "passwordLength": {"type": "integer", "minimum": 16, "maximum": 128}
  }
}`

// userPasswordMappingSchema is shared by the kinds that produce a username and password.
const userPasswordMappingSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["username", "password"],
  "properties": {
    "username": {"$ref": "#/definitions/key"},
    "password": {"$ref": "#/definitions/key"}
  },
  "definitions": {
    "key": {"type": "string", "pattern": "^[A-Za-z_][A-Za-z0-9_.-]*$"}
  }
}`

const serviceTokenConnectionSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["baseUrl", "apiToken"],
  "properties": {
    "baseUrl": {"type": "string", "pattern": "^https?://"},
    "apiToken": {"type": "string", "minLength": 1}
  }
}`

const databaseConnectionSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["driver", "dsn"],
  "properties": {
    "driver": {"type": "string", "enum": ["postgres", "mysql"]},
    "dsn": {"type": "string", "minLength": 1}
  }
}`

const unixConnectionSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["host", "user", "privateKey", "hostKey"],
  "properties": {
    "host": {"type": "string", "minLength": 1},
    "port": {"type": "integer", "minimum": 1, "maximum": 65535},
    "user": {"type": "string", "minLength": 1},
    "privateKey": {"type": "string", "minLength": 1},
    "hostKey": {"type": "string", "minLength": 1}
  }
}`

// kindSchemas holds the compiled schemas of one kind.
type kindSchemas struct {
	parameters *gojsonschema.Schema
	mapping    *gojsonschema.Schema
	connection *gojsonschema.Schema
}

var schemas = map[Kind]kindSchemas{
	KindServiceToken: {
		parameters: mustCompile(serviceTokenParametersSchema),
		mapping:    mustCompile(serviceTokenMappingSchema),
		connection: mustCompile(serviceTokenConnectionSchema),
	},
	KindDatabaseUser: {
		parameters: mustCompile(databaseUserParametersSchema),
		mapping:    mustCompile(userPasswordMappingSchema),
		connection: mustCompile(databaseConnectionSchema),
	},
	KindUnixAccount: {
		parameters: mustCompile(unixAccountParametersSchema),
		mapping:    mustCompile(userPasswordMappingSchema),
		connection: mustCompile(unixConnectionSchema),
	},
}

func mustCompile(schema string) *gojsonschema.Schema {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schema))
	if err != nil {
		panic(fmt.Sprintf("invalid built-in schema: %v", err))
	}
	return compiled
}

func schemasFor(kind Kind) (kindSchemas, error) {
	s, ok := schemas[kind]
	if !ok {
		return kindSchemas{}, fmt.Errorf("%w: %q", ErrUnsupportedKind, string(kind))
	}
	return s, nil
}

// validateDocument checks data against schema and joins every violation into one error
// wrapping base.
func validateDocument(schema *gojsonschema.Schema, data []byte, field string, base error) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: %s is required", base, field)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %s is not valid json: %v", base, field, err)
	}
	if result.Valid() {
		return nil
	}

	var msgs []string
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}
	return fmt.Errorf("%w: %s: %s", base, field, strings.Join(msgs, "; "))
}
