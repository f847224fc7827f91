package topology

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/infralens/infralens/internal/backend"
)

func sampleTopology() backend.Topology {
	return backend.Topology{
		Region: "us-east-1",
		VPCs: []backend.TopologyVPC{
			{
				ID: "vpc-b", Name: "prod", CIDRBlock: "10.1.0.0/16",
				Gateways: []backend.TopologyGateway{{ID: "igw-1", Type: "internet"}},
				Subnets: []backend.TopologySubnet{
					{ID: "subnet-2", CIDRBlock: "10.1.2.0/24", AvailabilityZone: "us-east-1b"},
					{ID: "subnet-1", Name: "public-a", CIDRBlock: "10.1.1.0/24", Public: true, Instances: []backend.TopologyInstance{
						{ID: "i-2", Name: "web-2", Kind: "ec2"},
						{ID: "db-1", Kind: "RDS"},
					}},
				},
			},
			{ID: "vpc-a"},
		},
	}
}

func TestBuildNodesAndEdges(t *testing.T) {
	t.Parallel()

	g := Build(sampleTopology())

	var ids []string
	for _, n := range g.Nodes {
		ids = append(ids, n.ID)
	}
	wantIDs := []string{"vpc-a", "vpc-b", "igw-1", "subnet-1", "db-1", "i-2", "subnet-2"}
	if diff := cmp.Diff(wantIDs, ids); diff != "" {
		t.Fatalf("node order mismatch (-want +got):\n%s", diff)
	}

	wantEdges := []Edge{
		{From: "vpc-b", To: "igw-1"},
		{From: "vpc-b", To: "subnet-1"},
		{From: "subnet-1", To: "db-1"},
		{From: "subnet-1", To: "i-2"},
		{From: "vpc-b", To: "subnet-2"},
	}
	if diff := cmp.Diff(wantEdges, g.Edges); diff != "" {
		t.Fatalf("edges mismatch (-want +got):\n%s", diff)
	}

	counts := g.Counts()
	if counts[KindVPC] != 2 || counts[KindSubnet] != 2 || counts[KindEC2] != 1 || counts[KindRDS] != 1 || counts[KindGateway] != 1 {
		t.Fatalf("counts=%v", counts)
	}
}

func TestBuildDetails(t *testing.T) {
	t.Parallel()

	g := Build(sampleTopology())
	for _, n := range g.Nodes {
		switch n.ID {
		case "subnet-1":
			if n.Label != "public-a" || n.Detail != "10.1.1.0/24 · public" {
				t.Fatalf("subnet-1 = %+v", n)
			}
		case "subnet-2":
			if n.Label != "subnet-2" || n.Detail != "10.1.2.0/24 · us-east-1b · private" {
				t.Fatalf("subnet-2 = %+v", n)
			}
		case "igw-1":
			if n.Detail != "internet" {
				t.Fatalf("igw-1 = %+v", n)
			}
		}
	}
}

func TestLines(t *testing.T) {
	t.Parallel()

	var got []string
	for _, l := range Build(sampleTopology()).Lines() {
		got = append(got, l.Text())
	}
	want := []string{
		"├── [V] vpc-a",
		"└── [V] prod",
		"    ├── [G] igw-1",
		"    ├── [S] public-a",
		"    │   ├── [D] db-1",
		"    │   └── [I] web-2",
		"    └── [S] subnet-2",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("lines mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildEmpty(t *testing.T) {
	t.Parallel()

	g := Build(backend.Topology{})
	if len(g.Nodes) != 0 || len(g.Edges) != 0 || len(g.Lines()) != 0 {
		t.Fatalf("expected empty graph, got %+v", g)
	}
}
