//go:build darwin

package srtp

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// setVoiceSockOpts применяет macOS-специфичные настройки сокета для
// голосового трафика. SO_PRIORITY на macOS отсутствует, используется
// только DSCP маркировка.
func setVoiceSockOpts(fd uintptr, dscp int) error {
	tos := dscp << 2
	if err := syscall.SetsockoptInt(int(fd), syscall.IPPROTO_IP, syscall.IP_TOS, tos); err != nil {
		return err
	}
	_ = syscall.SetsockoptInt(int(fd), syscall.IPPROTO_IPV6, unix.IPV6_TCLASS, tos)
	return nil
}
