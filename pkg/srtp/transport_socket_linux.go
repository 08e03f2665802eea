//go:build linux

package srtp

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// setVoiceSockOpts применяет Linux-специфичные настройки сокета для
// голосового трафика: приоритет очереди и DSCP маркировку
func setVoiceSockOpts(fd uintptr, dscp int) error {
	// SO_PRIORITY 6 соответствует интерактивному аудио в очередях ядра
	if err := syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, unix.SO_PRIORITY, 6); err != nil {
		// Недоступно в контейнерах без CAP_NET_ADMIN, не критично
		_ = err
	}

	// DSCP занимает старшие 6 бит поля TOS
	tos := dscp << 2
	if err := syscall.SetsockoptInt(int(fd), syscall.IPPROTO_IP, syscall.IP_TOS, tos); err != nil {
		return err
	}
	// Для IPv6 сокетов аналогично через traffic class; ошибка не
	// критична для IPv4-only сокетов
	_ = syscall.SetsockoptInt(int(fd), syscall.IPPROTO_IPV6, unix.IPV6_TCLASS, tos)

	return nil
}
