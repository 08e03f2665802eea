package srtp

import (
	"crypto/aes"
	"encoding/binary"
	"fmt"

	"github.com/pion/rtp"
	pionsrtp "github.com/pion/srtp/v2"
)

// Размер окна защиты от повтора для принимающих сессий
const replayWindowSize = 64

// Метка KDF для аутентификационного ключа SRTP (RFC 3711 Section 4.3.2)
const labelSRTPAuthenticationTag = 0x01

// Длина аутентификационного ключа HMAC-SHA1 (RFC 3711 Section 5.2)
const srtpAuthKeyLen = 20

// PionSession реализует CryptoSession поверх pion/srtp Context.
// Сессия однонаправленная: send-сессия только защищает, recv-сессия
// только снимает защиту. Context не потокобезопасен, сессия наследует
// это ограничение — вся обработка идет в одной последовательности.
type PionSession struct {
	suite     CipherSuite
	direction Direction
	ctx       *pionsrtp.Context

	// Идентификаторы шифруемых header extensions (RFC 6904).
	// pion/srtp не шифрует расширения заголовка, идентификаторы
	// хранятся как результат согласования для вышестоящего слоя.
	encryptedHeaderExtIDs []int

	// Состояние внешней аутентификации
	externalAuthRequested bool
	externalAuthActive    bool
	authKey               []byte
	authTagLen            int

	// Переиспользуемый выходной буфер шифра, содержимое копируется
	// обратно в PacketBuffer вызывающего
	scratch []byte
}

var _ CryptoSession = (*PionSession)(nil)

// NewPionSession создает криптографическую сессию с ключами.
// MasterKey содержит конкатенацию мастер-ключа и мастер-соли,
// длина должна соответствовать шифронабору.
func NewPionSession(cfg SessionConfig) (*PionSession, error) {
	profile, err := cfg.Suite.pionProfile()
	if err != nil {
		return nil, wrapSecureError(ErrorCodeSuiteUnsupported, "шифронабор отклонен", err)
	}

	keyLen := cfg.Suite.KeyLen()
	saltLen := cfg.Suite.SaltLen()
	if len(cfg.MasterKey) != keyLen+saltLen {
		return nil, wrapSecureError(ErrorCodeKeyLengthInvalid,
			"неверная длина ключевого материала",
			fmt.Errorf("набор %s требует %d байт, получено %d",
				cfg.Suite, keyLen+saltLen, len(cfg.MasterKey)))
	}
	masterKey := cfg.MasterKey[:keyLen]
	masterSalt := cfg.MasterKey[keyLen:]

	var opts []pionsrtp.ContextOption
	if cfg.Direction == DirectionRecv {
		opts = append(opts,
			pionsrtp.SRTPReplayProtection(replayWindowSize),
			pionsrtp.SRTCPReplayProtection(replayWindowSize))
	}

	ctx, err := pionsrtp.CreateContext(masterKey, masterSalt, profile, opts...)
	if err != nil {
		return nil, wrapSecureError(ErrorCodeKeyRejected, "ключ отклонен криптодвижком", err)
	}

	s := &PionSession{
		suite:                 cfg.Suite,
		direction:             cfg.Direction,
		ctx:                   ctx,
		encryptedHeaderExtIDs: append([]int(nil), cfg.EncryptedHeaderExtensionIDs...),
	}
	if cfg.ExternalAuth {
		if err := s.armExternalAuth(masterKey, masterSalt); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// armExternalAuth выводит аутентификационный ключ по RFC 3711 и включает
// режим внешней аутентификации. Возможно только для send-сессий с
// HMAC-SHA1 наборами: AEAD наборы не имеют отделимого тега.
func (s *PionSession) armExternalAuth(masterKey, masterSalt []byte) error {
	s.externalAuthRequested = true
	if s.direction != DirectionSend || !s.suite.supportsExternalAuth() {
		return nil
	}
	authKey, err := aesCmKeyDerivation(labelSRTPAuthenticationTag, masterKey, masterSalt, srtpAuthKeyLen)
	if err != nil {
		return wrapSecureError(ErrorCodeKeyRejected, "не удалось вывести аутентификационный ключ", err)
	}
	s.authKey = authKey
	s.authTagLen = s.suite.AuthTagLen()
	s.externalAuthActive = true
	return nil
}

// ProtectRTP защищает RTP пакет на месте, наращивая логическую длину
// на размер аутентификационного тега в пределах емкости буфера
func (s *PionSession) ProtectRTP(buf *PacketBuffer) error {
	if s.direction != DirectionSend {
		return newSecureError(ErrorCodeProtectFailed, "защита на принимающей сессии")
	}
	enc, err := s.ctx.EncryptRTP(s.scratch[:0], buf.Data(), nil)
	if err != nil {
		return wrapSecureError(ErrorCodeProtectFailed, "ошибка защиты RTP пакета", err)
	}
	s.scratch = enc
	return s.commit(buf, enc)
}

// ProtectRTPWithIndex защищает RTP пакет и возвращает криптографический
// индекс пакета: rollover counter в старших битах, sequence number в младших
func (s *PionSession) ProtectRTPWithIndex(buf *PacketBuffer) (uint64, error) {
	var hdr rtp.Header
	if _, err := hdr.Unmarshal(buf.Data()); err != nil {
		return 0, wrapSecureError(ErrorCodeProtectFailed, "не удалось разобрать RTP заголовок", err)
	}
	if err := s.ProtectRTP(buf); err != nil {
		return 0, err
	}
	roc, _ := s.ctx.ROC(hdr.SSRC)
	return uint64(roc)<<16 | uint64(hdr.SequenceNumber), nil
}

// ProtectRTCP защищает RTCP пакет на месте
func (s *PionSession) ProtectRTCP(buf *PacketBuffer) error {
	if s.direction != DirectionSend {
		return newSecureError(ErrorCodeProtectFailed, "защита на принимающей сессии")
	}
	enc, err := s.ctx.EncryptRTCP(s.scratch[:0], buf.Data(), nil)
	if err != nil {
		return wrapSecureError(ErrorCodeProtectFailed, "ошибка защиты RTCP пакета", err)
	}
	s.scratch = enc
	return s.commit(buf, enc)
}

// UnprotectRTP проверяет подлинность и расшифровывает RTP пакет,
// укорачивая логическую длину буфера
func (s *PionSession) UnprotectRTP(buf *PacketBuffer) error {
	if s.direction != DirectionRecv {
		return newSecureError(ErrorCodeUnprotectFailed, "снятие защиты на передающей сессии")
	}
	dec, err := s.ctx.DecryptRTP(s.scratch[:0], buf.Data(), nil)
	if err != nil {
		return wrapSecureError(ErrorCodeUnprotectFailed, "ошибка снятия защиты RTP пакета", err)
	}
	s.scratch = dec
	return s.commit(buf, dec)
}

// UnprotectRTCP проверяет подлинность и расшифровывает RTCP пакет
func (s *PionSession) UnprotectRTCP(buf *PacketBuffer) error {
	if s.direction != DirectionRecv {
		return newSecureError(ErrorCodeUnprotectFailed, "снятие защиты на передающей сессии")
	}
	dec, err := s.ctx.DecryptRTCP(s.scratch[:0], buf.Data(), nil)
	if err != nil {
		return wrapSecureError(ErrorCodeUnprotectFailed, "ошибка снятия защиты RTCP пакета", err)
	}
	s.scratch = dec
	return s.commit(buf, dec)
}

// commit переносит результат криптооперации обратно в буфер вызывающего
func (s *PionSession) commit(buf *PacketBuffer, out []byte) error {
	if len(out) > buf.Capacity() {
		return wrapSecureError(ErrorCodeBufferCapacity,
			"результат не помещается в емкость буфера",
			fmt.Errorf("нужно %d байт, емкость %d", len(out), buf.Capacity()))
	}
	copy(buf.Full(), out)
	return buf.SetLen(len(out))
}

// AuthParams возвращает аутентификационный ключ и длину тега для
// досчета тега внешним компонентом
func (s *PionSession) AuthParams() ([]byte, int, error) {
	if !s.externalAuthActive {
		return nil, 0, ErrExternalAuthInactive
	}
	return s.authKey, s.authTagLen, nil
}

// Overhead возвращает накладные расходы защиты на пакет в байтах
func (s *PionSession) Overhead() int {
	return s.suite.Overhead()
}

// EnableExternalAuth запрашивает внешнюю аутентификацию. Ключ уже
// установлен при создании, поэтому запрос после создания активирует
// режим только если шифронабор его поддерживает.
func (s *PionSession) EnableExternalAuth() {
	s.externalAuthRequested = true
	// Активация требует мастер-ключа, который не хранится после
	// создания. Включение после создания поддерживается только через
	// SessionConfig.ExternalAuth.
}

// IsExternalAuthActive сообщает, действует ли внешняя аутентификация
func (s *PionSession) IsExternalAuthActive() bool {
	return s.externalAuthActive
}

// Close освобождает ресурсы сессии
func (s *PionSession) Close() error {
	s.authKey = nil
	s.scratch = nil
	return nil
}

// aesCmKeyDerivation реализует AES-CM функцию вывода ключей из
// RFC 3711 Section 4.3: очередные ключи получаются шифрованием
// счетчиковых блоков, построенных из мастер-соли и метки.
func aesCmKeyDerivation(label byte, masterKey, masterSalt []byte, outLen int) ([]byte, error) {
	nMasterKey := len(masterKey)
	nMasterSalt := len(masterSalt)

	prfIn := make([]byte, nMasterKey)
	copy(prfIn[:nMasterSalt], masterSalt)
	prfIn[7] ^= label

	block, err := aes.NewCipher(masterKey)
	if err != nil {
		return nil, err
	}

	out := make([]byte, ((outLen+nMasterKey)/nMasterKey)*nMasterKey)
	var i uint16
	for n := 0; n < outLen; n += nMasterKey {
		binary.BigEndian.PutUint16(prfIn[nMasterKey-2:], i)
		block.Encrypt(out[n:n+nMasterKey], prfIn)
		i++
	}
	return out[:outLen], nil
}
