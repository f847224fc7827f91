package viewmodels

type DashboardViewData struct {
	Layout LayoutData

	Cards   []DashboardCard
	Sources []SourceStatusItem

	ErrorMessage string
}

type DashboardCard struct {
	Label string
	Count int
	Href  string
}

type SourceStatusItem struct {
	Name       string
	Healthy    bool
	Message    string
	LastSync   string
	BadgeClass string
}
