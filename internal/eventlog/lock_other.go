//go:build !unix

package eventlog

import "os"

// Platforms without flock fall back to the in-process mutex only.
func tryLock(file *os.File, exclusive bool) (bool, error) {
	return true, nil
}

func unlock(file *os.File) {}
