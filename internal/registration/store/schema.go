package store

import _ "embed"

// Schema is the DDL for the employees table. Operators apply it once; the
// service never alters the schema.
//
//go:embed schema.sql
var Schema string
