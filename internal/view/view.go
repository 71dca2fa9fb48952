// Package view defines the contract between the account coordinator and
// whatever surface presents it - the launcher's accounts tab, or the CLI in
// this repository. The coordinator calls these methods from the dispatch
// goroutine; implementations must not call back into the coordinator
// synchronously except where documented.
package view

import "github.com/packsmith/launcher/internal/model"

// Progress is a modal progress indicator shown while a background task
// runs. abort requests cooperative cancellation of the task.
type Progress interface {
	Begin(title string, abort func())
	End()
}

// View receives presentation callbacks from the coordinator
type View interface {
	Progress

	// PresentError shows a modal error dialog: title plus a single
	// paragraph body
	PresentError(title, body string)

	// PresentInfo shows a modal informational dialog
	PresentInfo(title, body string)

	// RequestRelogin tells the view that the account's credentials have
	// expired and an interactive login should be initiated for it
	RequestRelogin(id model.AccountID)
}
