package cli

import (
	"fmt"
	"os"
	"sync"

	"github.com/packsmith/launcher/internal/model"
	"github.com/packsmith/launcher/internal/view"
)

// termView renders coordinator dialogs on the terminal. Calls arrive on the
// dispatch goroutine, while Abort and TakeRelogins are called from the
// command goroutine, so everything is guarded by a mutex.
type termView struct {
	mu       sync.Mutex
	abort    func()
	relogins []model.AccountID
}

// Ensure termView implements the interface
var _ view.View = (*termView)(nil)

func newTermView() *termView {
	return &termView{}
}

func (v *termView) Begin(title string, abort func()) {
	v.mu.Lock()
	v.abort = abort
	v.mu.Unlock()
	fmt.Printf("... %s\n", title)
}

func (v *termView) End() {
	v.mu.Lock()
	v.abort = nil
	v.mu.Unlock()
}

func (v *termView) PresentError(title, body string) {
	fmt.Fprintf(os.Stderr, "%s: %s\n", title, body)
}

func (v *termView) PresentInfo(title, body string) {
	fmt.Printf("%s: %s\n", title, body)
}

func (v *termView) RequestRelogin(id model.AccountID) {
	v.mu.Lock()
	v.relogins = append(v.relogins, id)
	v.mu.Unlock()
}

// Abort cancels the in-flight task, if one is running
func (v *termView) Abort() {
	v.mu.Lock()
	abort := v.abort
	v.mu.Unlock()
	if abort != nil {
		abort()
	}
}

// TakeRelogins returns and clears the accounts flagged for re-login since
// the last call
func (v *termView) TakeRelogins() []model.AccountID {
	v.mu.Lock()
	defer v.mu.Unlock()
	ids := v.relogins
	v.relogins = nil
	return ids
}
