//go:build windows

package platform

import "golang.org/x/sys/windows"

// knownLocalAppData asks the shell for FOLDERID_LocalAppData when the
// environment does not carry it.
func knownLocalAppData() string {
	path, err := windows.KnownFolderPath(windows.FOLDERID_LocalAppData, 0)
	if err != nil {
		return ""
	}
	return path
}
