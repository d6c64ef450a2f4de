package provider

import (
	"context"
	"errors"

	"github.com/goliatone/go-formtree/pkg/schema"
)

// ErrNotFound reports a codelist, label or document the SDK does not define.
var ErrNotFound = errors.New("provider: not found")

// Code is one entry of a codelist with its display label.
type Code struct {
	Code  string `json:"code" yaml:"code"`
	Label string `json:"label" yaml:"label"`
}

// SchemaProvider supplies notice type definitions and field metadata.
type SchemaProvider interface {
	// ContentSchema returns the linked notice type of subtype.
	ContentSchema(ctx context.Context, version, subtype string) (*schema.NoticeType, error)
	// FieldMetadata returns the field metadata of version.
	FieldMetadata(ctx context.Context, version string) (*schema.FieldSet, error)
}

// CodelistProvider supplies the codes of a codelist in a language.
type CodelistProvider interface {
	Codes(ctx context.Context, version, codelistID, language string) ([]Code, error)
}

// Translator resolves label keys such as "field|name|BT-21-Lot".
type Translator interface {
	Label(ctx context.Context, version, key, language string) (string, error)
}

// Label keys used by the editor.
const (
	KeyFieldName      = "field|name|"
	KeyGroupName      = "group|name|"
	KeyIndicatorTrue  = "indicator|when-true|"
	KeyIndicatorFalse = "indicator|when-false|"
)
