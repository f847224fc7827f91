package auth

import (
	"net/url"
	"strings"
)

type Action int

const (
	// ActionSpinner renders only a loading indicator.
	ActionSpinner Action = iota
	ActionAllow
	ActionRedirect
)

func (a Action) String() string {
	switch a {
	case ActionSpinner:
		return "spinner"
	case ActionAllow:
		return "allow"
	case ActionRedirect:
		return "redirect"
	default:
		return "unknown"
	}
}

const LoginPath = "/login"

type GuardInput struct {
	// Loading is true while the sign-in configuration is not yet known.
	Loading       bool
	Config        Config
	Authenticated bool
	// RequestURI is the location the user asked for.
	RequestURI string
}

// GuardDecision says what a protected route should do. For redirects,
// Location is the login route, Replace asks for the login page to take the
// place of the requested entry in history, and Next is the sanitized location
// to return to after signing in ("/" when the request had none worth keeping).
type GuardDecision struct {
	Action   Action
	Location string
	Replace  bool
	Next     string
}

func Decide(in GuardInput) GuardDecision {
	switch {
	case in.Loading:
		return GuardDecision{Action: ActionSpinner}
	case !in.Config.AuthRequired():
		return GuardDecision{Action: ActionAllow}
	case in.Authenticated:
		return GuardDecision{Action: ActionAllow}
	}

	next := SanitizeNext(in.RequestURI)
	location := LoginPath
	if next != "" {
		location += "?next=" + url.QueryEscape(next)
	} else {
		next = "/"
	}
	return GuardDecision{Action: ActionRedirect, Location: location, Replace: true, Next: next}
}

// SanitizeNext accepts only local, non-login paths. Anything that could be
// read as another host, after decoding, is rejected.
func SanitizeNext(next string) string {
	next = strings.TrimSpace(next)
	if next == "" || len(next) > 2048 {
		return ""
	}
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return ""
	}
	if strings.ContainsAny(next, "\\\r\n\t") {
		return ""
	}

	u, err := url.Parse(next)
	if err != nil || u.IsAbs() || u.Host != "" || u.Scheme != "" {
		return ""
	}
	decoded, err := url.PathUnescape(u.EscapedPath())
	if err != nil || strings.HasPrefix(decoded, "//") || strings.Contains(decoded, "\\") {
		return ""
	}
	if u.Path == LoginPath || strings.HasPrefix(u.Path, LoginPath+"/") {
		return ""
	}
	if u.Path == "/" && u.RawQuery == "" {
		return ""
	}
	return next
}
