// Package schema holds the static content schema of a notice form: notice type
// definitions (groups and fields arranged for display), the field metadata
// published in the SDK fields file, and the dynamic property definitions
// attached to each field. Parsers accept JSON with comments and YAML. Link
// joins a notice type with its field metadata and reports unknown references
// as *ConfigurationError values. Nodes are read-only once linked and are
// shared by every instance materialised from them.
package schema
