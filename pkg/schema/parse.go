package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// ParseNoticeType decodes a notice type definition. JSON (with comments and
// trailing commas) is tried first; YAML is accepted as a fallback.
func ParseNoticeType(doc Document) (*NoticeType, error) {
	var nt NoticeType
	if err := decode(doc, &nt); err != nil {
		return nil, err
	}
	if strings.TrimSpace(nt.ID) == "" {
		return nil, fmt.Errorf("schema: notice type %s has no noticeId", doc.Location())
	}
	return &nt, nil
}

// ParseFields decodes the SDK fields file.
func ParseFields(doc Document) (*FieldSet, error) {
	var fs FieldSet
	if err := decode(doc, &fs); err != nil {
		return nil, err
	}
	fs.index()
	return &fs, nil
}

// Decode unmarshals an SDK document into out using the same JSON/YAML rules as
// the notice type and fields parsers. Providers use it for codelists and
// translation catalogues.
func Decode(doc Document, out any) error {
	return decode(doc, out)
}

func decode(doc Document, out any) error {
	raw := doc.Raw()
	if len(bytes.TrimSpace(raw)) == 0 {
		return ErrEmptyDocument
	}

	if isYAMLPath(doc.Location()) {
		if err := yaml.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("schema: parse yaml %s: %w", doc.Location(), err)
		}
		return nil
	}

	jsonErr := json.Unmarshal(jsonc.ToJSON(raw), out)
	if jsonErr == nil {
		return nil
	}
	if yamlErr := yaml.Unmarshal(raw, out); yamlErr != nil {
		return fmt.Errorf("schema: parse %s: %w", doc.Location(), jsonErr)
	}
	return nil
}

func isYAMLPath(location string) bool {
	switch strings.ToLower(filepath.Ext(location)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}
