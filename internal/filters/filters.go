// Package filters holds the list filter shared by every resource list view.
//
// The wire shape is the same for all list endpoints: status, region, search and
// tf_managed. Only fields that are set are encoded, so a cleared filter encodes
// to the empty string and issues exactly the unfiltered query.
package filters

import (
	"net/url"
	"strconv"
	"strings"
)

const (
	ParamStatus    = "status"
	ParamRegion    = "region"
	ParamSearch    = "search"
	ParamTFManaged = "tf_managed"

	maxSearchLen = 200
)

// Statuses lists the display statuses a list can be filtered by.
var Statuses = []string{"active", "inactive", "transitioning", "error", "unknown"}

// ListFilter is an immutable value; setters return modified copies.
type ListFilter struct {
	Status    string
	Region    string
	Search    string
	TFManaged *bool
}

// FromQuery parses and normalizes the filter fields of a request query.
func FromQuery(values url.Values) ListFilter {
	var f ListFilter
	f = f.WithStatus(values.Get(ParamStatus))
	f = f.WithRegion(values.Get(ParamRegion))
	f = f.WithSearch(values.Get(ParamSearch))
	if v, ok := ParseTFManaged(values.Get(ParamTFManaged)); ok {
		f = f.WithTFManaged(&v)
	}
	return f
}

func (f ListFilter) WithStatus(status string) ListFilter {
	status = strings.ToLower(strings.TrimSpace(status))
	if !IsKnownStatus(status) {
		status = ""
	}
	f.Status = status
	return f
}

func (f ListFilter) WithRegion(region string) ListFilter {
	f.Region = strings.ToLower(strings.TrimSpace(region))
	return f
}

func (f ListFilter) WithSearch(search string) ListFilter {
	search = strings.TrimSpace(search)
	if runes := []rune(search); len(runes) > maxSearchLen {
		search = string(runes[:maxSearchLen])
	}
	f.Search = search
	return f
}

// WithTFManaged copies v so later mutation of the caller's bool has no effect.
func (f ListFilter) WithTFManaged(v *bool) ListFilter {
	if v == nil {
		f.TFManaged = nil
		return f
	}
	b := *v
	f.TFManaged = &b
	return f
}

// Clear returns the zero filter.
func (f ListFilter) Clear() ListFilter {
	return ListFilter{}
}

func (f ListFilter) IsZero() bool {
	return f.Status == "" && f.Region == "" && f.Search == "" && f.TFManaged == nil
}

// Active counts the fields currently constraining the list.
func (f ListFilter) Active() int {
	n := 0
	for _, set := range []bool{f.Status != "", f.Region != "", f.Search != "", f.TFManaged != nil} {
		if set {
			n++
		}
	}
	return n
}

// Values returns the set fields as query values.
func (f ListFilter) Values() url.Values {
	values := url.Values{}
	if f.Status != "" {
		values.Set(ParamStatus, f.Status)
	}
	if f.Region != "" {
		values.Set(ParamRegion, f.Region)
	}
	if f.Search != "" {
		values.Set(ParamSearch, f.Search)
	}
	if f.TFManaged != nil {
		values.Set(ParamTFManaged, strconv.FormatBool(*f.TFManaged))
	}
	return values
}

// Encode returns the sorted query string, or "" for the zero filter.
func (f ListFilter) Encode() string {
	return f.Values().Encode()
}

// TFManagedValue renders the tri-state flag for form selects.
func (f ListFilter) TFManagedValue() string {
	if f.TFManaged == nil {
		return ""
	}
	return strconv.FormatBool(*f.TFManaged)
}

func IsKnownStatus(status string) bool {
	for _, s := range Statuses {
		if s == status {
			return true
		}
	}
	return false
}

func ParseTFManaged(raw string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes":
		return true, true
	case "0", "false", "no":
		return false, true
	default:
		return false, false
	}
}
