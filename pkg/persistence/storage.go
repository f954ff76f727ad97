package persistence

import "context"

// Storage is the contract between the object graph and whatever backs it. The
// graph notifies storage synchronously after its own state (including the
// modified counters) has been updated. Notifications return nothing: storage
// implementations surface write failures through their own channels.
type Storage interface {
	// StorageProperties returns the root dictionary of the stored document.
	StorageProperties() map[string]any
	// Properties returns the stored dictionary for p, or nil.
	Properties(p Persistent) map[string]any

	InsertItem(parent Persistent, key string, beforeIndex int, item Persistent)
	RemoveItem(parent Persistent, key string, index int, item Persistent)
	SetItem(parent Persistent, name string, item Persistent)
	SetProperty(p Persistent, key string, value any)
	ClearProperty(p Persistent, key string)

	// External data holds bulk payloads outside the dictionary.
	ReadExternalData(ctx context.Context, item Persistent, name string) ([]byte, error)
	WriteExternalData(ctx context.Context, item Persistent, name string, data []byte) error
	ReserveExternalData(ctx context.Context, item Persistent, name string, size int) error

	// Write delay batches writes for p until the matching exit.
	EnterWriteDelay(p Persistent)
	ExitWriteDelay(p Persistent)
	IsWriteDelayed(p Persistent) bool

	// RewriteItem replaces the stored dictionary of item with a fresh encoding.
	RewriteItem(item Persistent)
}
