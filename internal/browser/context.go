// File: internal/browser/context.go
package browser

import "context"

// CombineContext derives a context from parentCtx (keeping its values, which
// carry the CDP target) that is additionally cancelled when secondaryCtx
// ends.
func CombineContext(parentCtx, secondaryCtx context.Context) (context.Context, context.CancelFunc) {
	combinedCtx, cancel := context.WithCancel(parentCtx)

	go func() {
		select {
		case <-secondaryCtx.Done():
			cancel()
		case <-combinedCtx.Done():
			// Already cancelled, likely via the parent; just exit.
		}
	}()

	return combinedCtx, cancel
}
