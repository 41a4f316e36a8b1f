//go:build !windows

package security

import "golang.org/x/sys/unix"

func isAdmin() bool {
	return unix.Geteuid() == 0
}
