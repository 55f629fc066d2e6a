package fsops

// Deleter abstracts filesystem delete operations
// Enables mocking in tests to prove dry-run never deletes
type Deleter interface {
	// Remove deletes a file, symlink or empty directory
	Remove(path string) error
	// RemoveAll deletes a directory and everything below it
	RemoveAll(path string) error
}
