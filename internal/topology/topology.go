// Package topology converts the backend's VPC containment tree into nodes and
// edges, and flattens it into box-drawing lines for display.
package topology

import (
	"sort"
	"strings"

	"github.com/infralens/infralens/internal/backend"
)

type Kind string

const (
	KindVPC     Kind = "vpc"
	KindSubnet  Kind = "subnet"
	KindGateway Kind = "gateway"
	KindEC2     Kind = "ec2"
	KindRDS     Kind = "rds"
)

func (k Kind) Indicator() string {
	switch k {
	case KindVPC:
		return "[V]"
	case KindSubnet:
		return "[S]"
	case KindGateway:
		return "[G]"
	case KindRDS:
		return "[D]"
	default:
		return "[I]"
	}
}

type Node struct {
	ID     string         `json:"id"`
	Kind   Kind           `json:"kind"`
	Label  string         `json:"label"`
	Status backend.Status `json:"status,omitempty"`
	Detail string         `json:"detail,omitempty"`
}

// Edge points from a container to what it contains.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type Graph struct {
	Region   string           `json:"region,omitempty"`
	Nodes    []Node           `json:"nodes"`
	Edges    []Edge           `json:"edges"`
	children map[string][]string
	byID     map[string]Node
}

func nodeKey(kind Kind, id string) string {
	return string(kind) + ":" + id
}

func label(name, id string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return id
}

// Build flattens the tree into nodes and containment edges. VPCs, and the
// children of each container, are ordered by id.
func Build(t backend.Topology) *Graph {
	g := &Graph{
		Region:   t.Region,
		Nodes:    []Node{},
		Edges:    []Edge{},
		children: map[string][]string{},
		byID:     map[string]Node{},
	}

	vpcs := append([]backend.TopologyVPC(nil), t.VPCs...)
	sort.Slice(vpcs, func(i, j int) bool { return vpcs[i].ID < vpcs[j].ID })

	for _, vpc := range vpcs {
		vpcKey := g.add("", Node{ID: vpc.ID, Kind: KindVPC, Label: label(vpc.Name, vpc.ID), Status: vpc.Status, Detail: vpc.CIDRBlock})

		gateways := append([]backend.TopologyGateway(nil), vpc.Gateways...)
		sort.Slice(gateways, func(i, j int) bool { return gateways[i].ID < gateways[j].ID })
		for _, gw := range gateways {
			g.add(vpcKey, Node{ID: gw.ID, Kind: KindGateway, Label: label(gw.Name, gw.ID), Detail: gw.Type})
		}

		subnets := append([]backend.TopologySubnet(nil), vpc.Subnets...)
		sort.Slice(subnets, func(i, j int) bool { return subnets[i].ID < subnets[j].ID })
		for _, subnet := range subnets {
			detail := strings.TrimSpace(strings.Join(nonEmpty(subnet.CIDRBlock, subnet.AvailabilityZone, publicLabel(subnet.Public)), " · "))
			subnetKey := g.add(vpcKey, Node{ID: subnet.ID, Kind: KindSubnet, Label: label(subnet.Name, subnet.ID), Detail: detail})

			instances := append([]backend.TopologyInstance(nil), subnet.Instances...)
			sort.Slice(instances, func(i, j int) bool { return instances[i].ID < instances[j].ID })
			for _, inst := range instances {
				kind := KindEC2
				if strings.EqualFold(strings.TrimSpace(inst.Kind), "rds") {
					kind = KindRDS
				}
				g.add(subnetKey, Node{ID: inst.ID, Kind: kind, Label: label(inst.Name, inst.ID), Status: inst.Status})
			}
		}
	}
	return g
}

func (g *Graph) add(parentKey string, n Node) string {
	key := nodeKey(n.Kind, n.ID)
	if _, ok := g.byID[key]; !ok {
		g.byID[key] = n
		g.Nodes = append(g.Nodes, n)
	}
	if parentKey != "" {
		for _, existing := range g.children[parentKey] {
			if existing == key {
				return key
			}
		}
		g.children[parentKey] = append(g.children[parentKey], key)
		parent := g.byID[parentKey]
		g.Edges = append(g.Edges, Edge{From: parent.ID, To: n.ID})
	}
	return key
}

// Counts returns the number of nodes per kind.
func (g *Graph) Counts() map[Kind]int {
	out := map[Kind]int{}
	for _, n := range g.Nodes {
		out[n.Kind]++
	}
	return out
}

type Line struct {
	Prefix string
	Node   Node
	Level  int
}

// Text is the prefix, indicator and label joined for plain-text output.
func (l Line) Text() string {
	return l.Prefix + l.Node.Kind.Indicator() + " " + l.Node.Label
}

// Lines renders the graph as a tree, one line per node, VPCs at level zero.
func (g *Graph) Lines() []Line {
	var lines []Line
	var roots []string
	for _, n := range g.Nodes {
		if n.Kind == KindVPC {
			roots = append(roots, nodeKey(n.Kind, n.ID))
		}
	}
	for i, key := range roots {
		g.walk(&lines, key, "", i == len(roots)-1, 0)
	}
	return lines
}

func (g *Graph) walk(lines *[]Line, key, indent string, last bool, level int) {
	branch, childIndent := "├── ", indent+"│   "
	if last {
		branch, childIndent = "└── ", indent+"    "
	}
	*lines = append(*lines, Line{Prefix: indent + branch, Node: g.byID[key], Level: level})

	children := g.children[key]
	for i, child := range children {
		g.walk(lines, child, childIndent, i == len(children)-1, level+1)
	}
}

func publicLabel(public bool) string {
	if public {
		return "public"
	}
	return "private"
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
