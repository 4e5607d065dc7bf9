//go:build unix

package hook

import "syscall"

// detachAttr puts the dispatch child in its own session so it survives the
// hook handler's exit and never holds the controlling terminal.
func detachAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}
