package srtp

import "time"

// PacketHandler обрабатывает принятый пакет. Вызывается синхронно в
// последовательности доставки нижележащего транспорта.
type PacketHandler func(isRTCP bool, buf *PacketBuffer, receivedAt time.Time)

// ReadyHandler уведомляет о готовности транспорта к отправке
type ReadyHandler func(ready bool)

// PacketTransport определяет интерфейс нижележащего незашифрованного
// транспорта. Принимает уже защищенные буферы на отправку и доставляет
// сырые принятые буферы через установленный обработчик.
// SecureTransport становится единственным владельцем транспорта и
// закрывает его при собственном закрытии.
type PacketTransport interface {
	// SendRTP отправляет защищенный RTP пакет
	SendRTP(buf *PacketBuffer, opts *PacketOptions, flags int) error

	// SendRTCP отправляет защищенный RTCP пакет
	SendRTCP(buf *PacketBuffer, opts *PacketOptions, flags int) error

	// SetPacketHandler устанавливает обработчик принятых пакетов
	SetPacketHandler(handler PacketHandler)

	// SetReadyHandler устанавливает обработчик готовности к отправке
	SetReadyHandler(handler ReadyHandler)

	// Close закрывает транспорт
	Close() error
}

// PacketTimeParams несет данные для перезаписи временной метки отправки
// и досчета аутентификационного тега внешним компонентом.
// Заполняется пайплайном отправки при активной внешней аутентификации.
type PacketTimeParams struct {
	// RtpSendtimeExtensionID идентификатор header extension с временем
	// отправки, которое транспортный слой перепишет перед отправкой
	RtpSendtimeExtensionID int

	// SrtpPacketIndex криптографический индекс пакета (ROC<<16 | SEQ)
	SrtpPacketIndex uint64

	// SrtpAuthKey сырой аутентификационный ключ сессии
	SrtpAuthKey []byte

	// SrtpAuthTagLen длина аутентификационного тега в байтах
	SrtpAuthTagLen int
}

// PacketOptions опции отправки пакета, передаются нижележащему
// транспорту вместе с буфером
type PacketOptions struct {
	// DSCP значение для маркировки пакета (QoS)
	DSCP int

	// TimeParams параметры внешней аутентификации и временной метки
	TimeParams PacketTimeParams
}
