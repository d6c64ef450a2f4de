// Package provider defines the collaborators a session loads its notice form
// from (schema, codelists, translations) and ships SDK, an implementation
// reading the published SDK layout from a directory, an fs.FS or HTTP.
package provider
