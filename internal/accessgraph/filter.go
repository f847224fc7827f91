package accessgraph

import (
	"net/url"
	"strings"

	"github.com/infralens/infralens/internal/backend"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

const (
	ParamUser       = "user"
	ParamAccessType = "access_type"
	ParamTargetType = "target_type"
)

// Filter narrows the mapping before the graph is built. User is matched
// fuzzily and case-insensitively against user names.
type Filter struct {
	User       string
	AccessType string
	TargetType string
}

func FilterFromQuery(values url.Values) Filter {
	f := Filter{User: strings.TrimSpace(values.Get(ParamUser))}
	switch v := strings.ToLower(strings.TrimSpace(values.Get(ParamAccessType))); v {
	case backend.AccessStanding, backend.AccessJIT:
		f.AccessType = v
	}
	if kind, ok := ParseNodeKind(values.Get(ParamTargetType)); ok && kind.IsTarget() {
		f.TargetType = string(kind)
	}
	return f
}

func (f Filter) IsZero() bool {
	return f.User == "" && f.AccessType == "" && f.TargetType == ""
}

func (f Filter) Values() url.Values {
	values := url.Values{}
	if f.User != "" {
		values.Set(ParamUser, f.User)
	}
	if f.AccessType != "" {
		values.Set(ParamAccessType, f.AccessType)
	}
	if f.TargetType != "" {
		values.Set(ParamTargetType, f.TargetType)
	}
	return values
}

// Query is the part of the filter the backend can apply itself.
func (f Filter) Query() backend.AccessQuery {
	q := backend.AccessQuery{AccessType: f.AccessType}
	switch NodeKind(f.TargetType) {
	case KindEC2Target:
		q.TargetType = "ec2"
	case KindRDSTarget:
		q.TargetType = "rds"
	}
	return q
}

// Apply returns the subset of mapping matching f. Targets left without paths
// are dropped, and so are users left without targets.
func (f Filter) Apply(mapping backend.AccessMapping) backend.AccessMapping {
	if f.IsZero() {
		return mapping
	}
	out := backend.AccessMapping{Users: make([]backend.UserAccess, 0, len(mapping.Users))}
	for _, user := range mapping.Users {
		if f.User != "" && !fuzzy.MatchFold(f.User, user.UserName) {
			continue
		}
		kept := backend.UserAccess{UserName: user.UserName}
		for _, target := range user.Targets {
			if f.TargetType != "" && string(TargetKind(target.TargetType)) != f.TargetType {
				continue
			}
			t := target
			t.Paths = nil
			for _, path := range target.Paths {
				if f.AccessType != "" && NormalizeAccessType(path.AccessType) != f.AccessType {
					continue
				}
				t.Paths = append(t.Paths, path)
			}
			if len(t.Paths) > 0 {
				kept.Targets = append(kept.Targets, t)
			}
		}
		if len(kept.Targets) > 0 {
			out.Users = append(out.Users, kept)
		}
	}
	return out
}
