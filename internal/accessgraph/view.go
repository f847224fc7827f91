package accessgraph

import "sort"

// Badge summarizes the entities hidden under a collapsed node.
type Badge struct {
	Kind  string `json:"kind"`
	Count int    `json:"count"`
}

// Badge kinds, in display order.
const (
	BadgeTargets  = "targets"
	BadgeRoles    = "roles"
	BadgeSafes    = "safes"
	BadgePolicies = "policies"
	BadgeAccounts = "accounts"
)

var badgeOrder = []string{BadgeTargets, BadgeRoles, BadgeSafes, BadgePolicies, BadgeAccounts}

func badgeKind(k NodeKind) string {
	switch k {
	case KindEC2Target, KindRDSTarget:
		return BadgeTargets
	case KindRole:
		return BadgeRoles
	case KindSafe:
		return BadgeSafes
	case KindPolicy:
		return BadgePolicies
	case KindAccount:
		return BadgeAccounts
	default:
		return ""
	}
}

type ViewNode struct {
	Node
	Column      int     `json:"column"`
	Row         int     `json:"row"`
	Collapsible bool    `json:"collapsible"`
	Collapsed   bool    `json:"collapsed"`
	Badges      []Badge `json:"badges,omitempty"`
}

type View struct {
	Columns [][]ViewNode `json:"columns"`
	Edges   []Edge       `json:"edges"`
	Legend  Legend       `json:"legend"`
}

// Nodes flattens the columns in layout order.
func (v View) Nodes() []ViewNode {
	var out []ViewNode
	for _, col := range v.Columns {
		out = append(out, col...)
	}
	return out
}

// View projects the graph under a collapse state. A node is visible when some
// path reaches it without passing through a collapsed node; edges are shown
// for the hops of those visible path prefixes only. Collapsed nodes stay
// visible with their id and carry badges for their downstream entities.
func (g *Graph) View(state CollapseState) View {
	visible := map[string]bool{}
	for _, id := range g.roots() {
		visible[id] = true
	}

	shown := map[edgeKey]*Edge{}
	for _, r := range g.routes {
		for i, id := range r.chain {
			visible[id] = true
			if g.collapsed(state, id) || i+1 == len(r.chain) {
				break
			}
			key := edgeKey{from: id, to: r.chain[i+1], accessType: r.accessType}
			e, ok := shown[key]
			if !ok {
				e = &Edge{From: key.from, To: key.to, AccessType: key.accessType}
				shown[key] = e
			}
			e.Paths++
			e.addUser(r.user)
		}
	}

	nodes := make([]Node, 0, len(visible))
	for id := range visible {
		nodes = append(nodes, *g.nodes[id])
	}
	sortNodes(nodes)

	var columns [][]ViewNode
	lastColumn := -1
	for _, n := range nodes {
		col := n.Kind.Column()
		if col != lastColumn {
			columns = append(columns, nil)
			lastColumn = col
		}
		vn := ViewNode{
			Node:        n,
			Column:      col,
			Row:         len(columns[len(columns)-1]),
			Collapsible: g.HasChildren(n.ID),
		}
		if g.collapsed(state, n.ID) {
			vn.Collapsed = true
			vn.Badges = g.badges(n.ID)
		}
		columns[len(columns)-1] = append(columns[len(columns)-1], vn)
	}

	edges := make([]Edge, 0, len(shown))
	for _, e := range shown {
		sort.Strings(e.Users)
		edges = append(edges, *e)
	}
	sortEdges(edges)

	if columns == nil {
		columns = [][]ViewNode{}
	}
	return View{Columns: columns, Edges: edges, Legend: g.Legend}
}

func (g *Graph) collapsed(state CollapseState, id string) bool {
	return state.IsCollapsed(id) && g.HasChildren(id)
}

func (g *Graph) badges(id string) []Badge {
	counts := map[string]int{}
	for _, d := range g.downstream(id) {
		if kind := badgeKind(g.nodes[d].Kind); kind != "" {
			counts[kind]++
		}
	}
	var out []Badge
	for _, kind := range badgeOrder {
		if counts[kind] > 0 {
			out = append(out, Badge{Kind: kind, Count: counts[kind]})
		}
	}
	return out
}

// CollapseAll returns a state with every collapsible node of the given kinds
// collapsed.
func (g *Graph) CollapseAll(kinds ...NodeKind) CollapseState {
	want := map[NodeKind]bool{}
	for _, k := range kinds {
		want[k] = true
	}
	var ids []string
	for id, n := range g.nodes {
		if want[n.Kind] && g.HasChildren(id) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return NewCollapseState(ids...)
}
