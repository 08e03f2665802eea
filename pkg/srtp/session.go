package srtp

// CryptoSession определяет интерфейс криптографической сессии SRTP/SRTCP.
// Сессия привязана к одному направлению (send или recv) и получает ключи
// при создании. Реализация по умолчанию — PionSession поверх pion/srtp;
// интерфейс оставлен подменяемым для тестов пайплайна.
//
// Все операции работают на месте внутри PacketBuffer: защита растит
// логическую длину в пределах емкости, снятие защиты укорачивает её.
type CryptoSession interface {
	// ProtectRTP защищает RTP пакет, добавляя аутентификационный тег
	ProtectRTP(buf *PacketBuffer) error

	// ProtectRTPWithIndex защищает RTP пакет и возвращает 64-битный
	// криптографический индекс пакета (ROC<<16 | SEQ) для привязки
	// временной метки при внешней аутентификации
	ProtectRTPWithIndex(buf *PacketBuffer) (uint64, error)

	// ProtectRTCP защищает RTCP пакет
	ProtectRTCP(buf *PacketBuffer) error

	// UnprotectRTP проверяет и расшифровывает RTP пакет
	UnprotectRTP(buf *PacketBuffer) error

	// UnprotectRTCP проверяет и расшифровывает RTCP пакет
	UnprotectRTCP(buf *PacketBuffer) error

	// AuthParams возвращает сырой аутентификационный ключ и длину тега
	// для досчета тега внешним компонентом. Доступно только когда
	// внешняя аутентификация активна на сессии.
	AuthParams() (key []byte, tagLen int, err error)

	// Overhead возвращает накладные расходы защиты на пакет в байтах
	Overhead() int

	// EnableExternalAuth запрашивает режим внешней аутентификации.
	// Вступает в силу только если шифронабор его поддерживает.
	EnableExternalAuth()

	// IsExternalAuthActive сообщает, действует ли внешняя аутентификация
	IsExternalAuthActive() bool

	// Close освобождает ресурсы сессии
	Close() error
}

// SessionConfig параметры создания криптографической сессии
type SessionConfig struct {
	Suite     CipherSuite
	MasterKey []byte // мастер-ключ || мастер-соль, длина Suite.MasterKeyLen()
	Direction Direction

	// EncryptedHeaderExtensionIDs идентификаторы RTP header extensions,
	// которые должны оставаться известны криптослою (RFC 6904)
	EncryptedHeaderExtensionIDs []int

	// ExternalAuth запрашивает внешнюю аутентификацию (только send RTP)
	ExternalAuth bool
}

// SessionFactory создает криптографическую сессию по конфигурации.
// SecureTransport использует NewPionSession по умолчанию; тесты
// подставляют детерминированную фейковую реализацию.
type SessionFactory func(cfg SessionConfig) (CryptoSession, error)
