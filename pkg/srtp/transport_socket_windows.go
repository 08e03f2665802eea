//go:build windows

package srtp

import (
	"syscall"

	"golang.org/x/sys/windows"
)

// setVoiceSockOpts применяет Windows-специфичные настройки сокета.
// Установка TOS на Windows требует административных привилегий,
// поэтому ошибки маркировки игнорируются.
func setVoiceSockOpts(fd uintptr, dscp int) error {
	handle := syscall.Handle(fd)
	tos := dscp << 2

	if err := syscall.SetsockoptInt(handle, syscall.IPPROTO_IP, syscall.IP_TOS, tos); err != nil {
		// Windows часто требует административных прав для QoS
		return nil
	}
	_ = syscall.SetsockoptInt(handle, syscall.IPPROTO_IPV6, windows.IPV6_TCLASS, tos)
	return nil
}
