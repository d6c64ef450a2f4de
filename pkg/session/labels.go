package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-formtree/pkg/provider"
	"github.com/goliatone/go-formtree/pkg/schema"
	"github.com/goliatone/go-formtree/pkg/tree"
)

// Label returns the display label of inst in the session language. The
// node's label key is looked up first, then the conventional field or group
// key; the field name and finally the content id stand in for missing
// translations. Members of a repeatable group carry their number, as in
// "Lot (0002)".
func (s *Session) Label(ctx context.Context, inst *tree.Instance) string {
	if inst == nil {
		return ""
	}
	node := inst.Node()
	label := s.lookupLabel(ctx, node)
	if node.Repeatable && node.IsGroup() {
		label = fmt.Sprintf("%s (%04d)", label, inst.Number())
	}
	return label
}

func (s *Session) lookupLabel(ctx context.Context, node *schema.Node) string {
	var keys []string
	if node.Label != "" {
		keys = append(keys, node.Label)
	}
	if node.IsField() {
		keys = append(keys, provider.KeyFieldName+node.ID)
	} else {
		keys = append(keys, provider.KeyGroupName+node.ID)
	}
	if s.translator != nil {
		for _, key := range keys {
			text, err := s.translator.Label(ctx, s.req.SDKVersion, key, s.req.Language)
			if err == nil && strings.TrimSpace(text) != "" {
				return text
			}
		}
	}
	if node.Field != nil && node.Field.Name != "" {
		return node.Field.Name
	}
	return node.ID
}
