package srtp

import (
	"bytes"
	"sync"
	"time"
)

// fakeSession детерминированная криптографическая сессия для тестов
// пайплайна: "защита" дописывает фиксированный тег, "снятие защиты"
// проверяет и отрезает его. Настоящей криптографии не содержит.
type fakeSession struct {
	direction Direction
	tag       []byte

	failProtect   bool
	failUnprotect bool

	externalAuthActive bool
	authKey            []byte
	authTagLen         int
	nextIndex          uint64

	protectRTPCalls    int
	protectRTCPCalls   int
	unprotectRTPCalls  int
	unprotectRTCPCalls int
	closed             bool
}

var _ CryptoSession = (*fakeSession)(nil)

func newFakeSession(direction Direction) *fakeSession {
	return &fakeSession{
		direction: direction,
		tag:       []byte{0xde, 0xad, 0xbe, 0xef},
	}
}

func (s *fakeSession) appendTag(buf *PacketBuffer) error {
	if s.failProtect {
		return newSecureError(ErrorCodeProtectFailed, "тестовый отказ защиты")
	}
	n := buf.Len()
	if n+len(s.tag) > buf.Capacity() {
		return newSecureError(ErrorCodeBufferCapacity, "нет места под тег")
	}
	copy(buf.Full()[n:], s.tag)
	return buf.SetLen(n + len(s.tag))
}

func (s *fakeSession) stripTag(buf *PacketBuffer) error {
	if s.failUnprotect {
		return newSecureError(ErrorCodeUnprotectFailed, "тестовый отказ аутентификации")
	}
	n := buf.Len()
	if n < len(s.tag) || !bytes.Equal(buf.Data()[n-len(s.tag):], s.tag) {
		return newSecureError(ErrorCodeUnprotectFailed, "тег не совпадает")
	}
	return buf.SetLen(n - len(s.tag))
}

func (s *fakeSession) ProtectRTP(buf *PacketBuffer) error {
	s.protectRTPCalls++
	return s.appendTag(buf)
}

func (s *fakeSession) ProtectRTPWithIndex(buf *PacketBuffer) (uint64, error) {
	if err := s.ProtectRTP(buf); err != nil {
		return 0, err
	}
	s.nextIndex++
	return s.nextIndex, nil
}

func (s *fakeSession) ProtectRTCP(buf *PacketBuffer) error {
	s.protectRTCPCalls++
	return s.appendTag(buf)
}

func (s *fakeSession) UnprotectRTP(buf *PacketBuffer) error {
	s.unprotectRTPCalls++
	return s.stripTag(buf)
}

func (s *fakeSession) UnprotectRTCP(buf *PacketBuffer) error {
	s.unprotectRTCPCalls++
	return s.stripTag(buf)
}

func (s *fakeSession) AuthParams() ([]byte, int, error) {
	if !s.externalAuthActive {
		return nil, 0, ErrExternalAuthInactive
	}
	return s.authKey, s.authTagLen, nil
}

func (s *fakeSession) Overhead() int {
	return len(s.tag)
}

func (s *fakeSession) EnableExternalAuth() {}

func (s *fakeSession) IsExternalAuthActive() bool {
	return s.externalAuthActive
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

// sessionRecorder фабрика фейковых сессий с записью созданных
// конфигураций и управляемыми отказами
type sessionRecorder struct {
	created  []SessionConfig
	sessions []*fakeSession

	// failOn возвращает ошибку для конфигураций, создание которых
	// должно завершиться отказом
	failOn func(cfg SessionConfig) error

	// prepare дорабатывает созданную сессию (внешняя аутентификация и т.п.)
	prepare func(cfg SessionConfig, s *fakeSession)
}

func (r *sessionRecorder) factory(cfg SessionConfig) (CryptoSession, error) {
	r.created = append(r.created, cfg)
	if r.failOn != nil {
		if err := r.failOn(cfg); err != nil {
			return nil, err
		}
	}
	s := newFakeSession(cfg.Direction)
	if r.prepare != nil {
		r.prepare(cfg, s)
	}
	r.sessions = append(r.sessions, s)
	return s, nil
}

// sentPacket записанный вызов отправки нижележащего транспорта
type sentPacket struct {
	data  []byte
	opts  PacketOptions
	flags int
}

// fakeTransport нижележащий транспорт для тестов: записывает
// отправленные пакеты и доставляет входящие через обработчик
type fakeTransport struct {
	mutex         sync.Mutex
	packetHandler PacketHandler
	readyHandler  ReadyHandler

	sentRTP  []sentPacket
	sentRTCP []sentPacket
	sendErr  error
	closed   bool
}

var _ PacketTransport = (*fakeTransport)(nil)

func (t *fakeTransport) SendRTP(buf *PacketBuffer, opts *PacketOptions, flags int) error {
	if t.sendErr != nil {
		return t.sendErr
	}
	t.sentRTP = append(t.sentRTP, sentPacket{
		data:  append([]byte(nil), buf.Data()...),
		opts:  *opts,
		flags: flags,
	})
	return nil
}

func (t *fakeTransport) SendRTCP(buf *PacketBuffer, opts *PacketOptions, flags int) error {
	if t.sendErr != nil {
		return t.sendErr
	}
	t.sentRTCP = append(t.sentRTCP, sentPacket{
		data:  append([]byte(nil), buf.Data()...),
		opts:  *opts,
		flags: flags,
	})
	return nil
}

func (t *fakeTransport) SetPacketHandler(handler PacketHandler) {
	t.packetHandler = handler
}

func (t *fakeTransport) SetReadyHandler(handler ReadyHandler) {
	t.readyHandler = handler
}

func (t *fakeTransport) Close() error {
	t.closed = true
	return nil
}

// deliver имитирует прием пакета нижележащим транспортом
func (t *fakeTransport) deliver(isRTCP bool, data []byte, at time.Time) {
	if t.packetHandler == nil {
		return
	}
	t.packetHandler(isRTCP, NewPacketBufferFrom(data, 0), at)
}

// sentTotal суммарное количество отправленных пакетов
func (t *fakeTransport) sentTotal() int {
	return len(t.sentRTP) + len(t.sentRTCP)
}

// recordingSink сток диагностики, накапливающий события для проверок
type recordingSink struct {
	events []DiagnosticEvent
}

var _ DiagnosticSink = (*recordingSink)(nil)

func (s *recordingSink) OnDiagnostic(ev DiagnosticEvent) {
	s.events = append(s.events, ev)
}

// lastEvent возвращает последнее событие или nil
func (s *recordingSink) lastEvent() *DiagnosticEvent {
	if len(s.events) == 0 {
		return nil
	}
	return &s.events[len(s.events)-1]
}

// byOperation отбирает события по операции
func (s *recordingSink) byOperation(op string) []DiagnosticEvent {
	var result []DiagnosticEvent
	for _, ev := range s.events {
		if ev.Operation == op {
			result = append(result, ev)
		}
	}
	return result
}

// testKey генерирует детерминированный ключевой материал нужной длины
func testKey(suite CipherSuite, seed byte) []byte {
	key := make([]byte, suite.MasterKeyLen())
	for i := range key {
		key[i] = seed + byte(i)
	}
	return key
}
