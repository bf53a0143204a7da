//go:build !windows

package watcher

import "syscall"

// daemonSysProcAttr detaches the child into its own session so it survives
// the terminal closing.
func daemonSysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}
