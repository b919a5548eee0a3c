//go:build windows

package lock

import "os"

// On Windows only the in-process lock applies; memcore is used as a
// single-process library there.
func tryLockFile(_ *os.File) (bool, error) { return true, nil }
func unlockFile(_ *os.File)                {}
