//go:build !unix

package usbip

import "syscall"

func controlSocket(network, address string, rc syscall.RawConn) error {
	return nil
}
