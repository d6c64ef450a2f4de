package tree

import (
	"fmt"
	"regexp"
	"strings"
)

var nonWord = regexp.MustCompile(`\W`)

// FormatQualifiedID builds the identifier of an instance from its content id,
// instance number and qualifier (the qualified id of its nearest repeatable
// ancestor). Non-word characters become underscores, the result is lower case
// and the number is zero padded to four digits. Negative numbers omit the
// suffix. Identifiers starting with a digit get a leading underscore.
func FormatQualifiedID(contentID string, number int, qualifier string) string {
	properQualifier := normaliseIDPart(qualifier)
	properID := normaliseIDPart(contentID)

	suffix := ""
	if number > -1 {
		suffix = fmt.Sprintf("_%04d", number)
	}
	delimiter := ""
	if properQualifier != "" && properID != "" {
		delimiter = "_"
	}
	identifier := properQualifier + delimiter + properID + suffix
	if identifier != "" && identifier[0] >= '0' && identifier[0] <= '9' {
		return "_" + identifier
	}
	return identifier
}

// FormatSchemedID builds a generated identifier such as ORG-0001.
func FormatSchemedID(scheme string, number int) string {
	return fmt.Sprintf("%s-%04d", scheme, number)
}

func normaliseIDPart(part string) string {
	trimmed := strings.TrimSpace(part)
	if trimmed == "" {
		return ""
	}
	return strings.ToLower(nonWord.ReplaceAllString(trimmed, "_"))
}
