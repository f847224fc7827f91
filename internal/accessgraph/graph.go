// Package accessgraph converts the flat access-mapping dataset (users, targets
// and the paths between them) into a directed graph that can be rendered with
// collapsible intermediate nodes.
package accessgraph

import (
	"sort"
	"strings"

	"github.com/infralens/infralens/internal/backend"
)

type NodeKind string

const (
	KindUser      NodeKind = "user"
	KindRole      NodeKind = "role"
	KindSafe      NodeKind = "safe"
	KindPolicy    NodeKind = "policy"
	KindAccount   NodeKind = "account"
	KindEC2Target NodeKind = "ec2-target"
	KindRDSTarget NodeKind = "rds-target"
)

// Column returns the layout column of the kind. Users are leftmost and
// targets rightmost.
func (k NodeKind) Column() int {
	switch k {
	case KindUser:
		return 0
	case KindRole:
		return 1
	case KindPolicy:
		return 2
	case KindSafe:
		return 3
	case KindAccount:
		return 4
	default:
		return 5
	}
}

func (k NodeKind) IsTarget() bool {
	return k == KindEC2Target || k == KindRDSTarget
}

// ParseNodeKind maps the entity and target type spellings used by the backend
// to a node kind.
func ParseNodeKind(raw string) (NodeKind, bool) {
	v := strings.ToLower(strings.TrimSpace(raw))
	v = strings.ReplaceAll(v, "_", "-")
	switch v {
	case "user", "cyberark-user", "iam-user":
		return KindUser, true
	case "role", "cyberark-role", "iam-role":
		return KindRole, true
	case "safe", "cyberark-safe":
		return KindSafe, true
	case "policy", "cyberark-policy", "sia-policy", "jit-policy":
		return KindPolicy, true
	case "account", "aws-account", "privileged-account":
		return KindAccount, true
	case "ec2", "ec2-target", "ec2-instance", "instance":
		return KindEC2Target, true
	case "rds", "rds-target", "rds-instance", "database":
		return KindRDSTarget, true
	default:
		return "", false
	}
}

// TargetKind maps a target type to its node kind. Unknown or missing types
// are treated as EC2.
func TargetKind(raw string) NodeKind {
	kind, ok := ParseNodeKind(raw)
	if !ok || !kind.IsTarget() {
		return KindEC2Target
	}
	return kind
}

// NodeID is stable for an entity regardless of how it is rendered.
func NodeID(kind NodeKind, entityID string) string {
	return string(kind) + ":" + strings.TrimSpace(entityID)
}

type Node struct {
	ID       string   `json:"id"`
	Kind     NodeKind `json:"kind"`
	EntityID string   `json:"entity_id"`
	Label    string   `json:"label"`
	Context  string   `json:"context,omitempty"`
}

// Edge is one hop of one or more access paths. Hops shared by several paths
// of the same access type are merged and counted. Users lists whose paths
// traverse the hop.
type Edge struct {
	From       string   `json:"from"`
	To         string   `json:"to"`
	AccessType string   `json:"access_type"`
	Paths      int      `json:"paths"`
	Users      []string `json:"users,omitempty"`
}

type Legend struct {
	TotalUsers         int `json:"total_users"`
	TotalTargets       int `json:"total_targets"`
	TotalStandingPaths int `json:"total_standing_paths"`
	TotalJITPaths      int `json:"total_jit_paths"`
}

type Graph struct {
	nodes    map[string]*Node
	edges    map[edgeKey]*Edge
	children map[string][]string
	routes   []route
	Legend   Legend
}

// route is one path as a user-to-target chain of node ids. Nodes are merged
// across users, so reachability is answered from routes, not from edges.
type route struct {
	user       string
	accessType string
	chain      []string
}

type edgeKey struct {
	from, to, accessType string
}

// NormalizeAccessType folds backend spellings into standing or jit.
func NormalizeAccessType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case backend.AccessJIT, "just-in-time", "just_in_time", "ephemeral":
		return backend.AccessJIT
	default:
		return backend.AccessStanding
	}
}

// Build creates one node per distinct entity and one edge per consecutive step
// pair of every path. Paths that do not start at their user or end at their
// target are completed with them.
func Build(mapping backend.AccessMapping) *Graph {
	g := &Graph{
		nodes:    make(map[string]*Node),
		edges:    make(map[edgeKey]*Edge),
		children: make(map[string][]string),
	}

	for _, user := range mapping.Users {
		userName := strings.TrimSpace(user.UserName)
		if userName == "" {
			continue
		}
		userID := g.addNode(KindUser, userName, userName, "")

		for _, target := range user.Targets {
			if strings.TrimSpace(target.TargetID) == "" {
				continue
			}
			targetID := g.addNode(TargetKind(target.TargetType), target.TargetID, target.TargetName, "")

			for _, path := range target.Paths {
				accessType := NormalizeAccessType(path.AccessType)
				if accessType == backend.AccessJIT {
					g.Legend.TotalJITPaths++
				} else {
					g.Legend.TotalStandingPaths++
				}
				g.addPath(userName, userID, targetID, accessType, path.Steps)
			}
		}
	}

	for id := range g.children {
		sort.Strings(g.children[id])
	}
	for _, e := range g.edges {
		sort.Strings(e.Users)
	}
	for _, n := range g.nodes {
		switch {
		case n.Kind == KindUser:
			g.Legend.TotalUsers++
		case n.Kind.IsTarget():
			g.Legend.TotalTargets++
		}
	}
	return g
}

func (g *Graph) addNode(kind NodeKind, entityID, name, context string) string {
	entityID = strings.TrimSpace(entityID)
	id := NodeID(kind, entityID)
	n, ok := g.nodes[id]
	if !ok {
		n = &Node{ID: id, Kind: kind, EntityID: entityID, Label: entityID}
		g.nodes[id] = n
	}
	if name = strings.TrimSpace(name); name != "" && n.Label == entityID {
		n.Label = name
	}
	if context = strings.TrimSpace(context); context != "" && n.Context == "" {
		n.Context = context
	}
	return id
}

func (g *Graph) addPath(user, userID, targetID, accessType string, steps []backend.PathStep) {
	chain := make([]string, 0, len(steps)+2)
	for _, step := range steps {
		kind, ok := ParseNodeKind(step.EntityType)
		if !ok || strings.TrimSpace(step.EntityID) == "" {
			continue
		}
		id := g.addNode(kind, step.EntityID, step.EntityName, step.Context)
		if len(chain) > 0 && chain[len(chain)-1] == id {
			continue
		}
		chain = append(chain, id)
	}
	if len(chain) == 0 || chain[0] != userID {
		chain = append([]string{userID}, chain...)
	}
	if chain[len(chain)-1] != targetID {
		chain = append(chain, targetID)
	}

	g.routes = append(g.routes, route{user: user, accessType: accessType, chain: chain})
	for i := 0; i+1 < len(chain); i++ {
		key := edgeKey{from: chain[i], to: chain[i+1], accessType: accessType}
		e, ok := g.edges[key]
		if !ok {
			e = &Edge{From: key.from, To: key.to, AccessType: accessType}
			g.edges[key] = e
			g.linkChild(key.from, key.to)
		}
		e.Paths++
		e.addUser(user)
	}
}

func (e *Edge) addUser(user string) {
	for _, u := range e.Users {
		if u == user {
			return
		}
	}
	e.Users = append(e.Users, user)
}

func (g *Graph) linkChild(from, to string) {
	for _, existing := range g.children[from] {
		if existing == to {
			return
		}
	}
	g.children[from] = append(g.children[from], to)
}

func (g *Graph) Node(id string) (Node, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// Nodes returns every node ordered by column, label, then id.
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, *n)
	}
	sortNodes(out)
	return out
}

// Edges returns every edge ordered by endpoints then access type.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, 0, len(g.edges))
	for _, e := range g.edges {
		out = append(out, *e)
	}
	sortEdges(out)
	return out
}

// HasChildren reports whether the node has outgoing edges and can therefore
// be collapsed.
func (g *Graph) HasChildren(id string) bool {
	return len(g.children[id]) > 0
}

func (g *Graph) roots() []string {
	var ids []string
	for id, n := range g.nodes {
		if n.Kind == KindUser {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// downstream returns every node that follows id on some path through id,
// excluding id itself. A node merged into several users' paths only
// contributes the entities those paths actually reach.
func (g *Graph) downstream(id string) []string {
	seen := map[string]bool{id: true}
	var out []string
	for _, r := range g.routes {
		for i, step := range r.chain {
			if step != id {
				continue
			}
			for _, next := range r.chain[i+1:] {
				if !seen[next] {
					seen[next] = true
					out = append(out, next)
				}
			}
			break
		}
	}
	return out
}

func sortNodes(nodes []Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		if a.Kind.Column() != b.Kind.Column() {
			return a.Kind.Column() < b.Kind.Column()
		}
		la, lb := strings.ToLower(a.Label), strings.ToLower(b.Label)
		if la != lb {
			return la < lb
		}
		return a.ID < b.ID
	})
}

func sortEdges(edges []Edge) {
	sort.SliceStable(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.From != b.From {
			return a.From < b.From
		}
		if a.To != b.To {
			return a.To < b.To
		}
		return a.AccessType < b.AccessType
	})
}
