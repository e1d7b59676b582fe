//go:build !unix

package http

import "syscall"

func controlSocket(string, string, syscall.RawConn) error {
	return nil
}
