package interfaces

import "context"

// Printer is the external print operation. It accepts an opaque reference to
// stored image content and resolves with success or failure; the core treats
// any failure uniformly as a transition to the error state. The call may take
// arbitrary time and must honor context cancellation.
type Printer interface {
	Print(ctx context.Context, imagePath string) error
}
