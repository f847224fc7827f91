package accessgraph

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/infralens/infralens/internal/backend"
)

func step(entityType, id, name string) backend.PathStep {
	return backend.PathStep{EntityType: entityType, EntityID: id, EntityName: name}
}

// sampleMapping: alice reaches web-1 through a role and a safe (standing) and
// through a JIT policy; bob reaches orders-db through the same role.
func sampleMapping() backend.AccessMapping {
	return backend.AccessMapping{Users: []backend.UserAccess{
		{
			UserName: "alice",
			Targets: []backend.TargetAccess{{
				TargetType: "ec2",
				TargetID:   "i-0abc",
				TargetName: "web-1",
				Paths: []backend.AccessPath{
					{AccessType: "standing", Steps: []backend.PathStep{
						step("user", "alice", ""),
						step("role", "r-admin", "Admins"),
						step("safe", "s-prod", "Prod Safe"),
						step("account", "a-root", "root"),
						step("ec2", "i-0abc", "web-1"),
					}},
					{AccessType: "jit", Steps: []backend.PathStep{
						step("policy", "p-jit", "Break glass"),
					}},
				},
			}},
		},
		{
			UserName: "bob",
			Targets: []backend.TargetAccess{{
				TargetType: "rds",
				TargetID:   "orders-db",
				Paths: []backend.AccessPath{
					{AccessType: "standing", Steps: []backend.PathStep{
						step("user", "bob", ""),
						step("role", "r-admin", "Admins"),
						step("rds", "orders-db", ""),
					}},
				},
			}},
		},
	}}
}

func TestBuildSingleUserStandingAndJIT(t *testing.T) {
	t.Parallel()

	mapping := backend.AccessMapping{Users: []backend.UserAccess{{
		UserName: "alice",
		Targets: []backend.TargetAccess{{
			TargetType: "ec2",
			TargetID:   "i-1",
			Paths: []backend.AccessPath{
				{AccessType: "standing"},
				{AccessType: "jit"},
			},
		}},
	}}}

	g := Build(mapping)

	var users, targets int
	for _, n := range g.Nodes() {
		switch {
		case n.Kind == KindUser:
			users++
		case n.Kind.IsTarget():
			targets++
		}
	}
	if users != 1 || targets != 1 {
		t.Fatalf("users=%d targets=%d, want 1/1", users, targets)
	}

	want := []Edge{
		{From: "user:alice", To: "ec2-target:i-1", AccessType: "jit", Paths: 1, Users: []string{"alice"}},
		{From: "user:alice", To: "ec2-target:i-1", AccessType: "standing", Paths: 1, Users: []string{"alice"}},
	}
	if diff := cmp.Diff(want, g.Edges()); diff != "" {
		t.Fatalf("edges mismatch (-want +got):\n%s", diff)
	}

	wantLegend := Legend{TotalUsers: 1, TotalTargets: 1, TotalStandingPaths: 1, TotalJITPaths: 1}
	if g.Legend != wantLegend {
		t.Fatalf("legend=%+v, want %+v", g.Legend, wantLegend)
	}
}

func TestBuildMergesSharedEntities(t *testing.T) {
	t.Parallel()

	g := Build(sampleMapping())

	gotIDs := make([]string, 0)
	for _, n := range g.Nodes() {
		gotIDs = append(gotIDs, n.ID)
	}
	wantIDs := []string{
		"user:alice", "user:bob",
		"role:r-admin",
		"policy:p-jit",
		"safe:s-prod",
		"account:a-root",
		"rds-target:orders-db", "ec2-target:i-0abc",
	}
	if diff := cmp.Diff(wantIDs, gotIDs); diff != "" {
		t.Fatalf("node order mismatch (-want +got):\n%s", diff)
	}

	role, ok := g.Node("role:r-admin")
	if !ok || role.Label != "Admins" {
		t.Fatalf("role node = %+v, %v", role, ok)
	}
	target, _ := g.Node("rds-target:orders-db")
	if target.Label != "orders-db" {
		t.Fatalf("unnamed target label = %q", target.Label)
	}

	if g.Legend != (Legend{TotalUsers: 2, TotalTargets: 2, TotalStandingPaths: 2, TotalJITPaths: 1}) {
		t.Fatalf("legend=%+v", g.Legend)
	}
}

func TestBuildCountsRepeatedHops(t *testing.T) {
	t.Parallel()

	path := backend.AccessPath{AccessType: "standing", Steps: []backend.PathStep{step("role", "r1", "")}}
	g := Build(backend.AccessMapping{Users: []backend.UserAccess{{
		UserName: "alice",
		Targets: []backend.TargetAccess{
			{TargetType: "ec2", TargetID: "i-1", Paths: []backend.AccessPath{path}},
			{TargetType: "ec2", TargetID: "i-2", Paths: []backend.AccessPath{path}},
		},
	}}})

	paths := 0
	for _, e := range g.Edges() {
		if e.From == "user:alice" && e.To == "role:r1" {
			paths = e.Paths
		}
	}
	if paths != 2 {
		t.Fatalf("user->role paths = %d, want 2", paths)
	}
}

func TestBuildSkipsUnknownStepsAndBlankIDs(t *testing.T) {
	t.Parallel()

	g := Build(backend.AccessMapping{Users: []backend.UserAccess{
		{UserName: "  "},
		{UserName: "carol", Targets: []backend.TargetAccess{
			{TargetType: "ec2", TargetID: ""},
			{TargetType: "rds", TargetID: "db-1", Paths: []backend.AccessPath{{
				AccessType: "JIT",
				Steps: []backend.PathStep{
					step("mystery", "x", ""),
					step("role", "", ""),
					step("policy", "p1", ""),
					step("policy", "p1", ""),
				},
			}}},
		}},
	}})

	want := []Edge{
		{From: "policy:p1", To: "rds-target:db-1", AccessType: "jit", Paths: 1, Users: []string{"carol"}},
		{From: "user:carol", To: "policy:p1", AccessType: "jit", Paths: 1, Users: []string{"carol"}},
	}
	if diff := cmp.Diff(want, g.Edges()); diff != "" {
		t.Fatalf("edges mismatch (-want +got):\n%s", diff)
	}
}

func TestParseNodeKind(t *testing.T) {
	t.Parallel()

	tests := map[string]NodeKind{
		"EC2":           KindEC2Target,
		"ec2_instance":  KindEC2Target,
		"rds":           KindRDSTarget,
		"CyberArk_Safe": KindSafe,
		"sia_policy":    KindPolicy,
		"aws_account":   KindAccount,
		" role ":        KindRole,
		"cyberark-user": KindUser,
	}

	for raw, want := range tests {
		got, ok := ParseNodeKind(raw)
		if !ok || got != want {
			t.Fatalf("ParseNodeKind(%q) = %q, %v; want %q", raw, got, ok, want)
		}
	}
	if _, ok := ParseNodeKind("lambda"); ok {
		t.Fatal("ParseNodeKind(lambda) should fail")
	}
}

func TestGraphJSONShape(t *testing.T) {
	t.Parallel()

	v := Build(sampleMapping()).View(CollapseState{})
	raw, err := json.Marshal(v.Legend)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"total_users":2,"total_targets":2,"total_standing_paths":2,"total_jit_paths":1}`
	if string(raw) != want {
		t.Fatalf("legend json=%s, want %s", raw, want)
	}
}

func TestTargetKind(t *testing.T) {
	t.Parallel()

	tests := map[string]NodeKind{
		"rds":    KindRDSTarget,
		"EC2":    KindEC2Target,
		"":       KindEC2Target,
		"lambda": KindEC2Target,
		"role":   KindEC2Target,
	}
	for raw, want := range tests {
		if got := TargetKind(raw); got != want {
			t.Errorf("TargetKind(%q) = %q, want %q", raw, got, want)
		}
	}
}
