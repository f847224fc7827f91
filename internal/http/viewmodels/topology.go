package viewmodels

type TopologyViewData struct {
	Layout LayoutData

	Region  string
	Regions []string
	Lines   []TopologyLine
	Counts  []TopologyCount

	ErrorMessage string
	EmptyMessage string
}

type TopologyLine struct {
	Prefix      string
	Indicator   string
	Label       string
	Detail      string
	Status      string
	StatusClass string
	Href        string
}

type TopologyCount struct {
	Label string
	Count int
}
