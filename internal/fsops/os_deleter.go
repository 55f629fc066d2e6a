package fsops

import "github.com/spf13/afero"

// FsDeleter implements Deleter on top of an afero filesystem
type FsDeleter struct {
	Fs afero.Fs
}

// NewOSDeleter returns a Deleter that removes entries from the real filesystem
func NewOSDeleter() *FsDeleter {
	return &FsDeleter{Fs: afero.NewOsFs()}
}

func (d *FsDeleter) Remove(path string) error {
	return d.Fs.Remove(path)
}

func (d *FsDeleter) RemoveAll(path string) error {
	return d.Fs.RemoveAll(path)
}
