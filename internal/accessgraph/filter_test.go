package accessgraph

import (
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/infralens/infralens/internal/backend"
)

func TestFilterFromQuery(t *testing.T) {
	t.Parallel()

	f := FilterFromQuery(url.Values{
		ParamUser:       {" ali "},
		ParamAccessType: {"JIT"},
		ParamTargetType: {"rds"},
	})
	if f.User != "ali" || f.AccessType != "jit" || f.TargetType != string(KindRDSTarget) {
		t.Fatalf("filter=%+v", f)
	}
	if q := f.Query(); q.TargetType != "rds" || q.AccessType != "jit" || q.User != "" {
		t.Fatalf("query=%+v", q)
	}

	f = FilterFromQuery(url.Values{ParamAccessType: {"forever"}, ParamTargetType: {"role"}})
	if !f.IsZero() {
		t.Fatalf("invalid values should be dropped: %+v", f)
	}
}

func TestFilterApplyFuzzyUser(t *testing.T) {
	t.Parallel()

	got := Filter{User: "ALC"}.Apply(sampleMapping())
	if len(got.Users) != 1 || got.Users[0].UserName != "alice" {
		t.Fatalf("users=%+v", got.Users)
	}
}

func TestFilterApplyAccessType(t *testing.T) {
	t.Parallel()

	got := Filter{AccessType: backend.AccessJIT}.Apply(sampleMapping())
	if len(got.Users) != 1 || got.Users[0].UserName != "alice" {
		t.Fatalf("users=%+v", got.Users)
	}
	paths := got.Users[0].Targets[0].Paths
	if len(paths) != 1 || paths[0].AccessType != "jit" {
		t.Fatalf("paths=%+v", paths)
	}

	g := Build(got)
	if g.Legend.TotalStandingPaths != 0 || g.Legend.TotalJITPaths != 1 {
		t.Fatalf("legend=%+v", g.Legend)
	}
}

func TestFilterApplyTargetType(t *testing.T) {
	t.Parallel()

	got := Filter{TargetType: string(KindRDSTarget)}.Apply(sampleMapping())
	if len(got.Users) != 1 || got.Users[0].UserName != "bob" {
		t.Fatalf("users=%+v", got.Users)
	}
}

func TestFilterApplyDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	in := sampleMapping()
	_ = Filter{AccessType: backend.AccessJIT}.Apply(in)
	if n := len(in.Users[0].Targets[0].Paths); n != 2 {
		t.Fatalf("input mutated: %d paths", n)
	}
}

func TestFilterApplyTargetTypeMatchesGraphKind(t *testing.T) {
	t.Parallel()

	mapping := backend.AccessMapping{Users: []backend.UserAccess{{
		UserName: "dave",
		Targets: []backend.TargetAccess{
			{TargetType: "", TargetID: "i-untyped", Paths: []backend.AccessPath{{AccessType: "standing"}}},
			{TargetType: "lambda", TargetID: "fn-1", Paths: []backend.AccessPath{{AccessType: "standing"}}},
		},
	}}}

	tests := []struct {
		name       string
		targetType NodeKind
		wantIDs    []string
	}{
		{name: "ec2 keeps untyped and unknown targets", targetType: KindEC2Target, wantIDs: []string{"i-untyped", "fn-1"}},
		{name: "rds drops them", targetType: KindRDSTarget, wantIDs: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Filter{TargetType: string(tt.targetType)}.Apply(mapping)
			var ids []string
			for _, u := range got.Users {
				for _, target := range u.Targets {
					ids = append(ids, target.TargetID)
				}
			}
			if diff := cmp.Diff(tt.wantIDs, ids); diff != "" {
				t.Fatalf("targets mismatch (-want +got):\n%s", diff)
			}

			for _, n := range Build(got).Nodes() {
				if n.Kind.IsTarget() && n.Kind != tt.targetType {
					t.Fatalf("filtered graph has %s node %s", n.Kind, n.ID)
				}
			}
		})
	}
}
