//go:build !unix

package hook

import "syscall"

func detachAttr() *syscall.SysProcAttr {
	return nil
}
