package kvstore

// Store is the minimal key-value contract behind both the long-lived (shared by every tab)
// and the tab-scoped session stores. Implementations must be safe for concurrent use.
// Concurrent writers to the same key resolve as last write wins.
type Store interface {
	// Get returns the value stored under key and whether it was present
	Get(key string) ([]byte, bool, error)

	// Set stores value under key, replacing any previous value
	Set(key string, value []byte) error

	// Remove deletes key. Removing a missing key is not an error
	Remove(key string) error

	// Keys lists every key currently held, in ascending order
	Keys() ([]string, error)
}
