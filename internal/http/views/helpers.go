package views

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"unicode"

	"github.com/infralens/infralens/internal/filters"
	"github.com/infralens/infralens/internal/http/viewmodels"
)

const (
	placeholder  = "—"
	outlineBadge = "badge-outline"
)

// Badge tones by record status and drift kind. Unlisted values render as an
// outline badge.
var (
	statusTones = map[string]string{
		"active":        "emerald",
		"inactive":      "slate",
		"transitioning": "sky",
		"error":         "rose",
	}
	driftTones = map[string]string{
		"missing":          "rose",
		"deleted":          "rose",
		"missing_in_aws":   "rose",
		"modified":         "amber",
		"changed":          "amber",
		"unmanaged":        "sky",
		"missing_in_state": "sky",
	}
)

func toneBadge(tone string) string {
	if tone == "" {
		return outlineBadge
	}
	return fmt.Sprintf("badge bg-%[1]s-100 text-%[1]s-800 dark:bg-%[1]s-900/50 dark:text-%[1]s-100", tone)
}

func StatusBadgeClass(status string) string {
	return toneBadge(statusTones[strings.ToLower(strings.TrimSpace(status))])
}

func DriftBadgeClass(driftType string) string {
	return toneBadge(driftTones[strings.ToLower(strings.TrimSpace(driftType))])
}

func HealthBadgeClass(healthy bool) string {
	if healthy {
		return toneBadge("emerald")
	}
	return toneBadge("rose")
}

func FormatInt(v int) string {
	return strconv.Itoa(v)
}

// ResourceListURL builds a list href; the zero filter on page one is the bare
// base path.
func ResourceListURL(basePath string, f filters.ListFilter, page int) string {
	values := f.Values()
	if page > 1 {
		values.Set("page", strconv.Itoa(page))
	}
	if encoded := values.Encode(); encoded != "" {
		return basePath + "?" + encoded
	}
	return basePath
}

// ResourceDetailURL is the full-page detail view for one record.
func ResourceDetailURL(basePath, id string) string {
	if id = strings.TrimSpace(id); id != "" {
		return basePath + "/" + url.PathEscape(id)
	}
	return basePath
}

// ResourcePanelURL is the side-panel fragment for one record.
func ResourcePanelURL(basePath, id string) string {
	if strings.TrimSpace(id) == "" {
		return basePath
	}
	return ResourceDetailURL(basePath, id) + "/panel"
}

// HumanizeStatus turns "missing_in_aws" into "Missing In Aws".
func HumanizeStatus(status string) string {
	words := strings.FieldsFunc(strings.ToLower(strings.TrimSpace(status)), func(r rune) bool {
		return r == '_' || r == ':' || r == '-' || unicode.IsSpace(r)
	})
	if len(words) == 0 {
		return placeholder
	}
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

func OrDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return placeholder
	}
	return value
}

// IsActivePath reports whether the nav entry target covers activePath. The
// root only matches itself.
func IsActivePath(activePath, target string) bool {
	activePath, target = strings.TrimSpace(activePath), strings.TrimSpace(target)
	if target == "/" || activePath == target {
		return activePath == target
	}
	return strings.HasPrefix(activePath, target+"/")
}

func AriaCurrent(active bool) string {
	if !active {
		return ""
	}
	return "page"
}

func AlertRole(destructive bool) string {
	if !destructive {
		return "status"
	}
	return "alert"
}

func IsToastDestructive(category string) bool {
	switch strings.ToLower(strings.TrimSpace(category)) {
	case "error", "warning":
		return true
	}
	return false
}

// SafeID turns a node id such as "role:arn:aws:iam::1:role/x" into a value
// usable as a DOM id.
func SafeID(prefix, id string) string {
	return prefix + strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '-'
	}, id)
}

func pageTitle(title string) string {
	if title = strings.TrimSpace(title); title != "" {
		return title + " · InfraLens"
	}
	return "InfraLens"
}

// csrfHeaders is the hx-headers value that sends token with every htmx
// request.
func csrfHeaders(token string) string {
	b, _ := json.Marshal(map[string]string{"X-CSRF-Token": token})
	return string(b)
}

func healthLabel(healthy bool) string {
	if healthy {
		return "Healthy"
	}
	return "Unhealthy"
}

func targetOptionLabel(label string, count int) string {
	if count > 0 {
		return label + " (" + FormatInt(count) + ")"
	}
	return label
}

func accessNodeClass(n viewmodels.AccessNodeItem) string {
	class := "access-node node-" + n.Kind
	if n.Collapsed {
		class += " is-collapsed"
	}
	return class
}

func ariaExpanded(expanded bool) string {
	return strconv.FormatBool(expanded)
}

func toggleLabel(n viewmodels.AccessNodeItem) string {
	if n.Collapsed {
		return "Expand " + n.Label
	}
	return "Collapse " + n.Label
}

func toggleGlyph(collapsed bool) string {
	if collapsed {
		return "+"
	}
	return "−"
}
