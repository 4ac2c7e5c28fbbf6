package catalog

type (
	// kvStore provides an abstraction of what the catalog expects
	// from some underlying KV store implementation.
	kvStore interface {
		// Close the DB
		Close() error
		// Size reports about the size in bytes of the DB
		Size() uint64
		// Exists returns true if a key exists
		Exists([]byte) (bool, error)
		// Get the value for a key
		Get([]byte) ([]byte, error)
		// Set a key with some value
		Set([]byte, []byte) error
		// Delete a key
		Delete([]byte) error
		// ScanPrefix returns an iterator over all keys with a given prefix
		ScanPrefix([]byte) kvIterator
	}

	// kvIterator provides a simplified abstraction for some KV iterator
	kvIterator interface {
		Next() bool
		Item() ([]byte, []byte, error)
		Close() error
	}
)
