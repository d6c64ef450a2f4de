package docservice

import (
	"strconv"
	"strings"

	"github.com/goliatone/go-formtree/pkg/schema"
	"github.com/goliatone/go-formtree/pkg/tree"
)

// ReportMapping splits a validation report into messages per field instance,
// keyed by qualified id, and document-level messages.
type ReportMapping struct {
	Fields   map[string][]string
	Document []string
}

// MergeMessages concatenates message slices, trimming whitespace and
// dropping duplicates while preserving order.
func MergeMessages(existing []string, extras ...string) []string {
	combined := make([]string, 0, len(existing)+len(extras))
	combined = append(combined, existing...)
	combined = append(combined, extras...)
	return normalizeMessages(combined)
}

// MapReport attaches report messages to the instances of the tree rooted at
// root. Report paths may be qualified ids ("gr_lot_0002_bt_21_lot_0001"),
// content id paths with instance numbers ("GR-Lot/2/BT-21-Lot",
// "GR-Lot[2].BT-21-Lot") or bare content ids, optionally wrapped in JSON
// pointer or request prefixes. Numberless paths address the first instance.
// Paths matching nothing become document-level messages so none are lost.
func MapReport(root *tree.Instance, report map[string][]string) ReportMapping {
	mapping := ReportMapping{Fields: make(map[string][]string)}
	if len(report) == 0 {
		return mapping
	}

	index := indexPaths(root)
	for rawPath, messages := range report {
		normalized := normalizeMessages(messages)
		if len(normalized) == 0 {
			continue
		}
		qualifiedID, documentLevel := index.resolve(rawPath)
		if documentLevel {
			mapping.Document = append(mapping.Document, normalized...)
			continue
		}
		mapping.Fields[qualifiedID] = append(mapping.Fields[qualifiedID], normalized...)
	}

	for qualifiedID, messages := range mapping.Fields {
		mapping.Fields[qualifiedID] = normalizeMessages(messages)
	}
	if len(mapping.Fields) == 0 {
		mapping.Fields = nil
	}
	mapping.Document = normalizeMessages(mapping.Document)
	return mapping
}

// Locate returns the qualified id of the instance path addresses exactly,
// using the same path forms as MapReport. Unlike MapReport it does not fall
// back to an enclosing instance.
func Locate(root *tree.Instance, path string) (string, bool) {
	idx := indexPaths(root)
	trimmed := strings.TrimSpace(path)
	if _, ok := idx.qualified[trimmed]; ok {
		return trimmed, true
	}
	for _, variant := range buildSegmentVariants(parsePathSegments(trimmed)) {
		if qualifiedID, ok := idx.paths[strings.Join(variant, ".")]; ok {
			return qualifiedID, true
		}
	}
	return "", false
}

type pathIndex struct {
	qualified map[string]struct{}
	paths     map[string]string
}

// indexPaths maps every addressable path of the tree to a qualified id.
// Cosmetic groups, containers and the root do not contribute segments.
func indexPaths(root *tree.Instance) pathIndex {
	idx := pathIndex{
		qualified: make(map[string]struct{}),
		paths:     make(map[string]string),
	}
	var visit func(inst *tree.Instance, numbered, bare []string)
	visit = func(inst *tree.Instance, numbered, bare []string) {
		if contributes(inst.Node()) {
			numbered = append(append([]string(nil), numbered...), inst.ContentID())
			if inst.Node().Repeatable {
				numbered = append(numbered, strconv.Itoa(inst.Number()))
			}
			bare = append(append([]string(nil), bare...), inst.ContentID())

			qualifiedID := inst.QualifiedID()
			idx.qualified[qualifiedID] = struct{}{}
			idx.paths[strings.Join(numbered, ".")] = qualifiedID
			if _, exists := idx.paths[strings.Join(bare, ".")]; !exists {
				idx.paths[strings.Join(bare, ".")] = qualifiedID
			}
			if _, exists := idx.paths[inst.ContentID()]; !exists {
				idx.paths[inst.ContentID()] = qualifiedID
			}
		}
		for _, child := range inst.Children() {
			visit(child, numbered, bare)
		}
	}
	if root != nil {
		visit(root, nil, nil)
	}
	return idx
}

func contributes(node *schema.Node) bool {
	switch node.ContentType {
	case schema.ContentTypeField:
		return true
	case schema.ContentTypeGroup:
		return !node.IsCosmetic()
	default:
		return false
	}
}

func (idx pathIndex) resolve(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if isDocumentLevelKey(trimmed) {
		return "", true
	}
	if _, ok := idx.qualified[trimmed]; ok {
		return trimmed, false
	}

	segments := parsePathSegments(trimmed)
	if len(segments) == 0 {
		return "", true
	}

	best, bestLen := "", 0
	for _, variant := range buildSegmentVariants(segments) {
		if qualifiedID, n := idx.longestMatch(variant); n > bestLen {
			best, bestLen = qualifiedID, n
		}
	}
	if best == "" {
		return "", true
	}
	return best, false
}

func (idx pathIndex) longestMatch(segments []string) (string, int) {
	for end := len(segments); end > 0; end-- {
		if qualifiedID, ok := idx.paths[strings.Join(segments[:end], ".")]; ok {
			return qualifiedID, end
		}
	}
	return "", 0
}

func normalizeMessages(messages []string) []string {
	if len(messages) == 0 {
		return nil
	}
	out := make([]string, 0, len(messages))
	seen := make(map[string]struct{}, len(messages))
	for _, message := range messages {
		trimmed := strings.TrimSpace(message)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func parsePathSegments(path string) []string {
	clean := strings.TrimSpace(path)
	clean = strings.TrimPrefix(clean, "#/")
	clean = strings.TrimPrefix(clean, "$/")
	clean = strings.TrimPrefix(clean, "$.")
	for strings.HasPrefix(clean, "#") || strings.HasPrefix(clean, "/") || strings.HasPrefix(clean, ".") || strings.HasPrefix(clean, "$") {
		clean = strings.TrimPrefix(clean, "#")
		clean = strings.TrimPrefix(clean, "/")
		clean = strings.TrimPrefix(clean, ".")
		clean = strings.TrimPrefix(clean, "$")
	}

	replacer := strings.NewReplacer("[", ".", "]", "", "//", "/")
	clean = strings.Trim(replacer.Replace(clean), "./")
	if clean == "" {
		return nil
	}

	parts := strings.FieldsFunc(clean, func(r rune) bool {
		return r == '.' || r == '/'
	})
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		segment := strings.TrimSpace(part)
		if segment == "" {
			continue
		}
		segment = strings.ReplaceAll(segment, "~1", "/")
		segment = strings.ReplaceAll(segment, "~0", "~")
		out = append(out, segment)
	}
	return out
}

func buildSegmentVariants(segments []string) [][]string {
	var variants [][]string
	seen := make(map[string]struct{}, 4)
	appendVariant := func(candidate []string) {
		if len(candidate) == 0 {
			return
		}
		key := strings.Join(candidate, ".")
		if _, exists := seen[key]; exists {
			return
		}
		seen[key] = struct{}{}
		variants = append(variants, append([]string(nil), candidate...))
	}

	appendVariant(segments)
	noWrappers := dropWrapperSegments(segments)
	appendVariant(noWrappers)
	appendVariant(stripNumericSegments(segments))
	appendVariant(stripNumericSegments(noWrappers))
	return variants
}

func dropWrapperSegments(segments []string) []string {
	wrappers := map[string]struct{}{
		"body":                     {},
		"request":                  {},
		"payload":                  {},
		"data":                     {},
		"children":                 {},
		schema.RootID:              {},
		schema.MetadataContainerID: {},
		schema.DataContainerID:     {},
	}
	out := segments
	for len(out) > 0 {
		if _, ok := wrappers[strings.ToLower(out[0])]; ok {
			out = out[1:]
			continue
		}
		break
	}
	return out
}

func stripNumericSegments(segments []string) []string {
	out := make([]string, 0, len(segments))
	for _, segment := range segments {
		if _, err := strconv.Atoi(segment); err == nil {
			continue
		}
		out = append(out, segment)
	}
	return out
}

func isDocumentLevelKey(key string) bool {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "", ".", "/", "#", "$", "notice", "document", "__all__", "non_field_errors", "non-field-errors":
		return true
	default:
		return false
	}
}
