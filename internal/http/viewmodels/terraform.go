package viewmodels

type TerraformViewData struct {
	Layout LayoutData

	States      []TerraformStateItem
	Drift       []DriftItemView
	DriftCounts []DriftCount
	GeneratedAt string

	StatesError string
	DriftError  string
}

type TerraformStateItem struct {
	Source        string
	Backend       string
	Serial        int64
	Version       string
	ResourceCount int
	LastModified  string
}

type DriftItemView struct {
	Address      string
	ResourceType string
	ResourceID   string
	DriftType    string
	BadgeClass   string
	StateSource  string
	Region       string
	Details      string
	DetectedAt   string
}

type DriftCount struct {
	DriftType string
	Count     int
}
