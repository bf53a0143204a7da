//go:build windows

package watcher

import "syscall"

// detachedProcess is DETACHED_PROCESS from the Windows API; syscall does
// not export it.
const detachedProcess = 0x00000008

func daemonSysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP | detachedProcess,
	}
}
