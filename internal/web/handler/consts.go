package handler

const (
	// BaseLayout is the default path for layout templates.
	BaseLayout = "layouts/base"

	// RootPath is the root path of a route group.
	RootPath = "/"

	// ErrNilACSFatalLogMsg is used if the app, cfg or subsystem pointer is nil.
	ErrNilACSFatalLogMsg = "app, cfg or auth subsystem is nil"
)
