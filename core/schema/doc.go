/*
Package schema defines model definitions: the declarative files that describe
a data collection and the routes synthesized for it.

# Model Definition

A minimal model definition in YAML:

	identity: employee
	connection: default

	attributes:
	  firstName: string
	  lastName:  { type: string, required: true }
	  email:     { type: email, unique: true }
	  password:  { type: secret }

	includes:
	  - GET /info
	  - PUT [/,]*
	  - /POST \/.+/
	excludes:
	  - /DELETE \/$/

	custom_routes:
	  GET /custom_route: greet
	  GET /status: { status: 200, body: { ok: true } }

The identity key marks a file as a model definition. Files without it are not
models and are skipped by the loader.

# Attributes

An attribute is either a bare type name or a mapping. When no attribute is
marked primaryKey an auto-increment integer "id" attribute is added.

Supported attribute types:

  - string, text: text value
  - integer:      integer value
  - float:        floating-point value
  - boolean:      boolean value
  - date:         date value (YYYY-MM-DD)
  - datetime:     RFC 3339 timestamp
  - json:         any JSON value
  - array:        JSON array
  - email:        email address
  - uuid:         UUID; generated when it is the primary key
  - secret:       hashed on write, never returned

# Routes

includes and excludes hold route patterns; see package route for the literal
forms. custom_routes is an ordered mapping from route key to either the name of
a registered handler or a static response.

# Parsing

	model, err := schema.ParseFile("models/employee.yaml")

Definitions are validated on parse. ErrNotModel is returned for documents that
are not model definitions.
*/
package schema
