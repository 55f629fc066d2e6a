//go:build !windows

package platform

func knownLocalAppData() string { return "" }
