package viewmodels

type StatusOption struct {
	Value    string
	Label    string
	Selected bool
}

type ResourceFilterView struct {
	Search    string
	Status    string
	Region    string
	TFManaged string
}

type ResourceListViewData struct {
	Layout LayoutData

	Kind      string
	Title     string
	Singular  string
	BasePath  string
	ResultsID string

	Filter     ResourceFilterView
	Statuses   []StatusOption
	HasFilters bool
	ClearHref  string

	Columns []string
	Rows    []ResourceRow

	Page        int
	TotalPages  int
	Total       int
	ShowingFrom int
	ShowingTo   int
	PrevHref    string
	NextHref    string

	ErrorMessage string
	EmptyMessage string
}

type ResourceRow struct {
	ID          string
	Name        string
	Status      string
	StatusClass string
	Cells       []string
	TFManaged   bool
	TFSource    string
	TFAddress   string
	Updated     string
	DetailHref  string
	PanelHref   string
	ConsoleHref string
}

type Field struct {
	Label string
	Value string
	Href  string
}

type ResourcePanelViewData struct {
	Kind        string
	Singular    string
	ID          string
	Name        string
	Status      string
	StatusClass string
	Fields      []Field
	Tags        []Field
	ConsoleHref string
	ListHref    string

	NotFound     bool
	ErrorMessage string
}

// ResourceDetailViewData wraps a panel as a full page for direct links.
type ResourceDetailViewData struct {
	Layout LayoutData
	Panel  ResourcePanelViewData
}
