package accessgraph

import (
	"net/url"
	"sort"
	"strings"
)

// ParamCollapsed carries the collapsed node ids in the view URL, so the state
// lives exactly as long as the view that owns it.
const ParamCollapsed = "collapsed"

const maxCollapsed = 500

// CollapseState is an immutable set of collapsed node ids.
type CollapseState struct {
	ids map[string]struct{}
}

func CollapseStateFromQuery(values url.Values) CollapseState {
	return NewCollapseState(values[ParamCollapsed]...)
}

func NewCollapseState(ids ...string) CollapseState {
	s := CollapseState{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || len(s.ids) >= maxCollapsed {
			continue
		}
		s.ids[id] = struct{}{}
	}
	return s
}

func (s CollapseState) IsCollapsed(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// Toggle returns a copy of the state with id flipped.
func (s CollapseState) Toggle(id string) CollapseState {
	next := CollapseState{ids: make(map[string]struct{}, len(s.ids)+1)}
	for k := range s.ids {
		next.ids[k] = struct{}{}
	}
	if _, ok := next.ids[id]; ok {
		delete(next.ids, id)
	} else if id = strings.TrimSpace(id); id != "" {
		next.ids[id] = struct{}{}
	}
	return next
}

// IDs returns the collapsed ids in sorted order.
func (s CollapseState) IDs() []string {
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s CollapseState) Len() int {
	return len(s.ids)
}

// Apply writes the state into values, replacing any previous collapsed ids.
func (s CollapseState) Apply(values url.Values) url.Values {
	out := url.Values{}
	for k, v := range values {
		if k == ParamCollapsed {
			continue
		}
		out[k] = append([]string(nil), v...)
	}
	if ids := s.IDs(); len(ids) > 0 {
		out[ParamCollapsed] = ids
	}
	return out
}
