package viewmodels

type AccessFilterView struct {
	User       string
	AccessType string
	TargetType string
}

type AccessMappingViewData struct {
	Layout LayoutData
	Graph  AccessGraphViewData

	UserSuggestions []string
	// TargetCounts is keyed by target_type form value.
	TargetCounts map[string]int
}

// AccessGraphViewData is the swappable #access-graph fragment.
type AccessGraphViewData struct {
	Filter     AccessFilterView
	HasFilters bool
	ClearHref  string

	Columns []AccessColumn
	Edges   []AccessEdgeItem
	Legend  AccessLegend

	// Collapsed holds the node ids carried into the next filter request.
	Collapsed []string

	ExpandAllHref   string
	CollapseAllHref string
	JSONHref        string

	ErrorMessage string
	EmptyMessage string
}

type AccessColumn struct {
	Title string
	Nodes []AccessNodeItem
}

type AccessNodeItem struct {
	ID          string
	DOMID       string
	Kind        string
	Label       string
	Context     string
	Collapsible bool
	Collapsed   bool
	ToggleHref  string
	Badges      []AccessBadge
	Href        string
	ConsoleHref string
}

type AccessBadge struct {
	Kind  string
	Label string
	Count int
}

type AccessEdgeItem struct {
	From       string
	To         string
	AccessType string
	Paths      int
	Users      []string
}

type AccessLegend struct {
	TotalUsers         int
	TotalTargets       int
	TotalStandingPaths int
	TotalJITPaths      int
}
