package viewmodels

type LayoutData struct {
	Title       string
	CSRFToken   string
	UserName    string
	UserRoles   []string
	AuthEnabled bool
	Toast       *ToastViewData
	ActivePath  string
	Nav         []NavSection
	Freshness   FreshnessViewData
}

type NavSection struct {
	Label string
	Items []NavItem
}

type NavItem struct {
	Label  string
	Href   string
	Active bool
}

type ToastViewData struct {
	Category    string
	Title       string
	Description string
}

// FreshnessViewData drives the polled "last refreshed" indicator.
type FreshnessViewData struct {
	Label             string
	Tier              string
	BadgeClass        string
	RefreshInProgress bool
	TickSeconds       int
	Unavailable       bool
}
