package session

// Redirector sends the user to the login flow, carrying the path whose call failed so
// they can resume after signing in. Implementations must do nothing when optional is
// true.
type Redirector interface {
	Redirect(optional bool, failingPath string)
}

// RedirectFunc adapts a plain function to Redirector.
type RedirectFunc func(failingPath string)

func (f RedirectFunc) Redirect(optional bool, failingPath string) {
	if optional || f == nil {
		return
	}
	f(failingPath)
}

type nopRedirector struct{}

func (nopRedirector) Redirect(bool, string) {}
