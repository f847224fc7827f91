package viewmodels

type LoginViewData struct {
	CSRFToken        string
	Username         string
	Next             string
	ErrorMessage     string
	LocalAuthEnabled bool
	OIDCEnabled      bool
	OIDCLoginURL     string
	Toast            *ToastViewData
}

// AuthLoadingViewData is shown while sign-in settings cannot be resolved.
type AuthLoadingViewData struct {
	RetryHref    string
	RetrySeconds int
}
