package srtp

import (
	"fmt"

	pionsrtp "github.com/pion/srtp/v2"
)

// CipherSuite идентифицирует шифронабор SRTP согласно реестру
// DTLS-SRTP protection profiles (RFC 5764 Section 4.1.2, RFC 7714).
// Значения совпадают с wire-значениями профилей, чтобы результат
// согласования (SDES или DTLS-SRTP) передавался без перекодирования.
type CipherSuite uint16

const (
	CipherSuiteUnknown CipherSuite = 0x0000

	// AES-CM шифрование + HMAC-SHA1 аутентификация (RFC 3711)
	CipherSuiteAes128CmHmacSha1_80 CipherSuite = 0x0001
	CipherSuiteAes128CmHmacSha1_32 CipherSuite = 0x0002

	// AEAD AES-GCM (RFC 7714), шифрование и аутентификация одним примитивом
	CipherSuiteAeadAes128Gcm CipherSuite = 0x0007
	CipherSuiteAeadAes256Gcm CipherSuite = 0x0008
)

func (cs CipherSuite) String() string {
	switch cs {
	case CipherSuiteAes128CmHmacSha1_80:
		return "AES_CM_128_HMAC_SHA1_80"
	case CipherSuiteAes128CmHmacSha1_32:
		return "AES_CM_128_HMAC_SHA1_32"
	case CipherSuiteAeadAes128Gcm:
		return "AEAD_AES_128_GCM"
	case CipherSuiteAeadAes256Gcm:
		return "AEAD_AES_256_GCM"
	default:
		return "unknown"
	}
}

// CipherSuiteFromName возвращает шифронабор по имени из SDES crypto-suite
// реестра (RFC 4568 Section 6.2). Используется при разборе a=crypto атрибутов.
func CipherSuiteFromName(name string) CipherSuite {
	switch name {
	case "AES_CM_128_HMAC_SHA1_80":
		return CipherSuiteAes128CmHmacSha1_80
	case "AES_CM_128_HMAC_SHA1_32":
		return CipherSuiteAes128CmHmacSha1_32
	case "AEAD_AES_128_GCM":
		return CipherSuiteAeadAes128Gcm
	case "AEAD_AES_256_GCM":
		return CipherSuiteAeadAes256Gcm
	default:
		return CipherSuiteUnknown
	}
}

// KeyLen возвращает длину мастер-ключа в байтах
func (cs CipherSuite) KeyLen() int {
	switch cs {
	case CipherSuiteAes128CmHmacSha1_80, CipherSuiteAes128CmHmacSha1_32, CipherSuiteAeadAes128Gcm:
		return 16
	case CipherSuiteAeadAes256Gcm:
		return 32
	default:
		return 0
	}
}

// SaltLen возвращает длину мастер-соли в байтах
func (cs CipherSuite) SaltLen() int {
	switch cs {
	case CipherSuiteAes128CmHmacSha1_80, CipherSuiteAes128CmHmacSha1_32:
		return 14
	case CipherSuiteAeadAes128Gcm, CipherSuiteAeadAes256Gcm:
		return 12
	default:
		return 0
	}
}

// MasterKeyLen возвращает полную длину ключевого материала (ключ + соль),
// как он передается в SetRtpParams/SetRtcpParams
func (cs CipherSuite) MasterKeyLen() int {
	return cs.KeyLen() + cs.SaltLen()
}

// AuthTagLen возвращает размер аутентификационного тега SRTP в байтах.
// Для AEAD наборов это размер GCM тега.
func (cs CipherSuite) AuthTagLen() int {
	switch cs {
	case CipherSuiteAes128CmHmacSha1_80:
		return 10
	case CipherSuiteAes128CmHmacSha1_32:
		return 4
	case CipherSuiteAeadAes128Gcm, CipherSuiteAeadAes256Gcm:
		return 16
	default:
		return 0
	}
}

// Overhead возвращает накладные расходы SRTP на один пакет в байтах
// (рост пакета при защите). Для всех поддерживаемых наборов это размер тега.
func (cs CipherSuite) Overhead() int {
	return cs.AuthTagLen()
}

// supportsExternalAuth сообщает, допускает ли набор внешнюю HMAC
// аутентификацию. AEAD наборы не имеют отделимого тега, поэтому
// внешняя аутентификация для них невозможна.
func (cs CipherSuite) supportsExternalAuth() bool {
	switch cs {
	case CipherSuiteAes128CmHmacSha1_80, CipherSuiteAes128CmHmacSha1_32:
		return true
	default:
		return false
	}
}

// pionProfile отображает шифронабор на protection profile библиотеки pion/srtp
func (cs CipherSuite) pionProfile() (pionsrtp.ProtectionProfile, error) {
	switch cs {
	case CipherSuiteAes128CmHmacSha1_80:
		return pionsrtp.ProtectionProfileAes128CmHmacSha1_80, nil
	case CipherSuiteAes128CmHmacSha1_32:
		return pionsrtp.ProtectionProfileAes128CmHmacSha1_32, nil
	case CipherSuiteAeadAes128Gcm:
		return pionsrtp.ProtectionProfileAeadAes128Gcm, nil
	case CipherSuiteAeadAes256Gcm:
		return pionsrtp.ProtectionProfileAeadAes256Gcm, nil
	default:
		return 0, fmt.Errorf("неподдерживаемый шифронабор: 0x%04x", uint16(cs))
	}
}

// Direction определяет направление криптографической сессии
type Direction int

const (
	DirectionSend Direction = iota // Защита исходящих пакетов
	DirectionRecv                  // Снятие защиты с входящих пакетов
)

func (d Direction) String() string {
	switch d {
	case DirectionSend:
		return "send"
	case DirectionRecv:
		return "recv"
	default:
		return "unknown"
	}
}

// TransportState представляет состояние защищенного транспорта
type TransportState int

const (
	TransportStateInactive TransportState = iota // Ключи не установлены
	TransportStateActive                         // Обе RTP сессии получили ключи
)

func (s TransportState) String() string {
	switch s {
	case TransportStateInactive:
		return "inactive"
	case TransportStateActive:
		return "active"
	default:
		return "unknown"
	}
}
