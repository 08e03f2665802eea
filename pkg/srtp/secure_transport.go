package srtp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/looplab/fsm"
)

// События машины состояний транспорта
const (
	eventActivate = "activate"
	eventReset    = "reset"
)

// newActivationFSM создает машину состояний транспорта.
// Активация возможна повторно (перенастройка ключей на активном
// транспорте), сброс переводит в inactive из любого состояния.
func newActivationFSM() *fsm.FSM {
	return fsm.NewFSM(
		TransportStateInactive.String(),
		fsm.Events{
			{Name: eventActivate, Src: []string{TransportStateInactive.String(), TransportStateActive.String()}, Dst: TransportStateActive.String()},
			{Name: eventReset, Src: []string{TransportStateInactive.String(), TransportStateActive.String()}, Dst: TransportStateInactive.String()},
		}, nil,
	)
}

// Config конфигурация защищенного транспорта
type Config struct {
	// ContentName диагностическая метка транспорта, попадает в события
	// диагностики. Неизменяема после создания.
	ContentName string

	// Transport нижележащий незашифрованный транспорт. Обязателен.
	// Владение переходит к SecureTransport: транспорт закрывается
	// вместе с ним.
	Transport PacketTransport

	// Sink сток диагностических событий. По умолчанию slog
	Sink DiagnosticSink

	// Metrics счетчики транспорта, опционально
	Metrics *Metrics

	// SessionFactory фабрика криптографических сессий.
	// По умолчанию PionSession поверх pion/srtp
	SessionFactory SessionFactory
}

// SecureTransport прозрачно защищает исходящие RTP/RTCP пакеты и
// снимает защиту с входящих, располагаясь между приложением и
// незашифрованным пакетным транспортом.
//
// Транспорт активен тогда и только тогда, когда обе RTP сессии
// (send и recv) получили ключи через SetRtpParams. RTCP сессии
// опциональны: при их отсутствии RTCP пакеты обрабатываются через
// RTCP точки входа RTP сессий (общий ключ при rtcp-mux).
//
// Все операции должны выполняться в одной последовательности
// исполнения вместе с доставкой пакетов нижележащего транспорта.
// Внутренних блокировок нет: однопоточность предполагается,
// а не обеспечивается.
type SecureTransport struct {
	contentName string
	transport   PacketTransport

	sendSession     CryptoSession
	recvSession     CryptoSession
	sendRtcpSession CryptoSession
	recvRtcpSession CryptoSession

	sendEncryptedHeaderExtIDs []int
	recvEncryptedHeaderExtIDs []int

	externalAuthEnabled  bool
	rtpAbsSendtimeExtnID int

	sessionFactory SessionFactory
	machine        *fsm.FSM
	sink           DiagnosticSink
	metrics        *Metrics

	receiveHandler PacketHandler
	readyHandler   ReadyHandler
}

// NewSecureTransport создает защищенный транспорт поверх переданного
// нижележащего транспорта и подключается к его сигналам приема и
// готовности к отправке
func NewSecureTransport(cfg Config) (*SecureTransport, error) {
	if cfg.Transport == nil {
		return nil, fmt.Errorf("нижележащий транспорт обязателен")
	}
	sink := cfg.Sink
	if sink == nil {
		sink = NewSlogSink(nil)
	}
	factory := cfg.SessionFactory
	if factory == nil {
		factory = func(sc SessionConfig) (CryptoSession, error) {
			return NewPionSession(sc)
		}
	}

	t := &SecureTransport{
		contentName:    cfg.ContentName,
		transport:      cfg.Transport,
		sessionFactory: factory,
		machine:        newActivationFSM(),
		sink:           sink,
		metrics:        cfg.Metrics,
	}
	t.transport.SetPacketHandler(t.onPacketReceived)
	t.transport.SetReadyHandler(t.onReadyToSend)
	return t, nil
}

// SetReceiveHandler устанавливает обработчик расшифрованных входящих
// пакетов. Вызывается синхронно в последовательности доставки
// нижележащего транспорта.
func (t *SecureTransport) SetReceiveHandler(handler PacketHandler) {
	t.receiveHandler = handler
}

// SetReadyHandler устанавливает обработчик готовности к отправке.
// Сигнал нижележащего транспорта передается без изменений.
func (t *SecureTransport) SetReadyHandler(handler ReadyHandler) {
	t.readyHandler = handler
}

// IsActive сообщает, активен ли транспорт: обе RTP сессии получили ключи
func (t *SecureTransport) IsActive() bool {
	return t.sendSession != nil && t.recvSession != nil
}

// State возвращает текущее состояние машины состояний транспорта
func (t *SecureTransport) State() TransportState {
	if t.machine.Current() == TransportStateActive.String() {
		return TransportStateActive
	}
	return TransportStateInactive
}

// SetRtpParams устанавливает ключи RTP сессий и активирует транспорт.
// Сессии пересоздаются при каждом вызове. Любой отказ установки ключа
// откатывает все четыре сессии (включая ранее установленные RTCP) —
// транспорт никогда не остается с частично установленными ключами.
func (t *SecureTransport) SetRtpParams(sendSuite CipherSuite, sendKey []byte, recvSuite CipherSuite, recvKey []byte) error {
	sendSession, err := t.sessionFactory(SessionConfig{
		Suite:                       sendSuite,
		MasterKey:                   sendKey,
		Direction:                   DirectionSend,
		EncryptedHeaderExtensionIDs: t.sendEncryptedHeaderExtIDs,
		ExternalAuth:                t.externalAuthEnabled,
	})
	if err != nil {
		t.Reset()
		t.metrics.incKeying(true)
		t.sink.OnDiagnostic(DiagnosticEvent{
			Operation:   "keying",
			ContentName: t.contentName,
			Message:     "отказ установки send ключа SRTP",
			Err:         err,
		})
		return wrapSecureError(ErrorCodeKeyRejected, "send ключ SRTP отклонен", err)
	}

	recvSession, err := t.sessionFactory(SessionConfig{
		Suite:                       recvSuite,
		MasterKey:                   recvKey,
		Direction:                   DirectionRecv,
		EncryptedHeaderExtensionIDs: t.recvEncryptedHeaderExtIDs,
	})
	if err != nil {
		_ = sendSession.Close()
		t.Reset()
		t.metrics.incKeying(true)
		t.sink.OnDiagnostic(DiagnosticEvent{
			Operation:   "keying",
			ContentName: t.contentName,
			Message:     "отказ установки recv ключа SRTP",
			Err:         err,
		})
		return wrapSecureError(ErrorCodeKeyRejected, "recv ключ SRTP отклонен", err)
	}

	t.closeSession(&t.sendSession)
	t.closeSession(&t.recvSession)
	t.sendSession = sendSession
	t.recvSession = recvSession
	t.fire(eventActivate)
	t.metrics.incKeying(false)
	// В лог попадают только идентификаторы шифронаборов, не ключи
	t.sink.OnDiagnostic(DiagnosticEvent{
		Operation:   "keying",
		ContentName: t.contentName,
		Message: fmt.Sprintf("SRTP активирован: send %s, recv %s",
			sendSuite, recvSuite),
	})
	return nil
}

// SetRtcpParams устанавливает ключи выделенных RTCP сессий.
// Вызывается не более одного раза за эпоху ключей: повторный вызов
// при существующих RTCP сессиях завершается ошибкой без побочных
// эффектов. При отказе установки recv ключа send сессия остается
// на месте — повторный вызов будет отклонен как single-shot.
func (t *SecureTransport) SetRtcpParams(sendSuite CipherSuite, sendKey []byte, recvSuite CipherSuite, recvKey []byte) error {
	if t.sendRtcpSession != nil || t.recvRtcpSession != nil {
		t.sink.OnDiagnostic(DiagnosticEvent{
			Operation:   "keying",
			ContentName: t.contentName,
			Message:     "повторная установка параметров SRTCP отклонена",
			Err:         ErrRtcpParamsAlreadySet,
		})
		return ErrRtcpParamsAlreadySet
	}

	sendSession, err := t.sessionFactory(SessionConfig{
		Suite:     sendSuite,
		MasterKey: sendKey,
		Direction: DirectionSend,
	})
	if err != nil {
		t.metrics.incKeying(true)
		return wrapSecureError(ErrorCodeKeyRejected, "send ключ SRTCP отклонен", err)
	}
	t.sendRtcpSession = sendSession

	recvSession, err := t.sessionFactory(SessionConfig{
		Suite:     recvSuite,
		MasterKey: recvKey,
		Direction: DirectionRecv,
	})
	if err != nil {
		t.metrics.incKeying(true)
		return wrapSecureError(ErrorCodeKeyRejected, "recv ключ SRTCP отклонен", err)
	}
	t.recvRtcpSession = recvSession

	t.metrics.incKeying(false)
	t.sink.OnDiagnostic(DiagnosticEvent{
		Operation:   "keying",
		ContentName: t.contentName,
		Message: fmt.Sprintf("SRTCP активирован: send %s, recv %s",
			sendSuite, recvSuite),
	})
	return nil
}

// Reset безусловно сбрасывает все четыре сессии и переводит транспорт
// в неактивное состояние. Идемпотентен. Используется и внутренне при
// отказе установки ключей, и внешне как аварийный выключатель.
func (t *SecureTransport) Reset() {
	t.closeSession(&t.sendSession)
	t.closeSession(&t.recvSession)
	t.closeSession(&t.sendRtcpSession)
	t.closeSession(&t.recvRtcpSession)
	t.fire(eventReset)
	t.sink.OnDiagnostic(DiagnosticEvent{
		Operation:   "keying",
		ContentName: t.contentName,
		Message:     "параметры защищенного транспорта сброшены",
	})
}

// SetEncryptedHeaderExtensionIds сохраняет набор идентификаторов
// шифруемых header extensions для указанного направления. Применяется
// к следующей создаваемой сессии этого направления, на уже активные
// сессии не влияет.
func (t *SecureTransport) SetEncryptedHeaderExtensionIds(direction Direction, ids []int) {
	copied := append([]int(nil), ids...)
	if direction == DirectionSend {
		t.sendEncryptedHeaderExtIDs = copied
	} else {
		t.recvEncryptedHeaderExtIDs = copied
	}
}

// SetRtpAbsSendtimeExtnID задает идентификатор header extension с
// временем отправки, передаваемый вниз при внешней аутентификации
func (t *SecureTransport) SetRtpAbsSendtimeExtnID(id int) {
	t.rtpAbsSendtimeExtnID = id
}

// EnableExternalAuth включает режим внешней аутентификации.
// Нарушение контракта вызова — вызов на активном транспорте —
// завершает программу: это ошибка программирования, а не условие
// времени выполнения.
func (t *SecureTransport) EnableExternalAuth() {
	if t.IsActive() {
		panic("srtp: EnableExternalAuth вызван на активном транспорте")
	}
	t.externalAuthEnabled = true
}

// IsExternalAuthEnabled сообщает, запрошена ли внешняя аутентификация
func (t *SecureTransport) IsExternalAuthEnabled() bool {
	return t.externalAuthEnabled
}

// IsExternalAuthActive сообщает, действует ли внешняя аутентификация
// на текущей send сессии. Флаг транспорта — намерение; активность
// подтверждает сессия (шифронабор должен поддерживать отделимый тег).
func (t *SecureTransport) IsExternalAuthActive() bool {
	if !t.IsActive() {
		return false
	}
	return t.sendSession.IsExternalAuthActive()
}

// GetSrtpOverhead возвращает накладные расходы защиты на пакет в байтах
func (t *SecureTransport) GetSrtpOverhead() (int, error) {
	if !t.IsActive() {
		return 0, ErrTransportInactive
	}
	return t.sendSession.Overhead(), nil
}

// SendRtpPacket защищает RTP пакет на месте и передает его
// нижележащему транспорту
func (t *SecureTransport) SendRtpPacket(buf *PacketBuffer, opts *PacketOptions, flags int) error {
	return t.sendPacket(false, buf, opts, flags)
}

// SendRtcpPacket защищает RTCP пакет на месте и передает его
// нижележащему транспорту
func (t *SecureTransport) SendRtcpPacket(buf *PacketBuffer, opts *PacketOptions, flags int) error {
	return t.sendPacket(true, buf, opts, flags)
}

// sendPacket общий путь отправки: защита на месте, затем передача вниз.
// При отказе защиты пакет не покидает систему, а в диагностику попадают
// несекретные поля исходного (неизмененного) буфера.
func (t *SecureTransport) sendPacket(isRTCP bool, buf *PacketBuffer, opts *PacketOptions, flags int) error {
	if !t.IsActive() {
		t.metrics.incDropped("inactive")
		t.sink.OnDiagnostic(DiagnosticEvent{
			Operation:   "send",
			ContentName: t.contentName,
			IsRTCP:      isRTCP,
			Size:        buf.Len(),
			Message:     "отправка при неактивном транспорте",
			Err:         ErrTransportInactive,
		})
		return ErrTransportInactive
	}

	updated := PacketOptions{}
	if opts != nil {
		updated = *opts
	}

	var err error
	switch {
	case !isRTCP && t.IsExternalAuthActive():
		// Аутентификационный тег будет досчитан транспортным слоем
		// после перезаписи времени отправки в header extension:
		// точное время известно только в момент ухода пакета в сеть
		updated.TimeParams.RtpSendtimeExtensionID = t.rtpAbsSendtimeExtnID
		var index uint64
		index, err = t.sendSession.ProtectRTPWithIndex(buf)
		if err == nil {
			updated.TimeParams.SrtpPacketIndex = index
			var key []byte
			var tagLen int
			key, tagLen, err = t.sendSession.AuthParams()
			if err == nil {
				updated.TimeParams.SrtpAuthKey = append([]byte(nil), key...)
				updated.TimeParams.SrtpAuthTagLen = tagLen
			}
		}
	case !isRTCP:
		err = t.sendSession.ProtectRTP(buf)
	default:
		err = t.protectRTCP(buf)
	}

	if err != nil {
		t.metrics.incProtectError(isRTCP)
		t.emitPacketFailure("protect", isRTCP, buf, err)
		return wrapSecureError(ErrorCodeProtectFailed, "отказ защиты пакета", err)
	}
	t.metrics.incProtected(isRTCP)

	// Логическая длина уже включает аутентификационный тег
	if isRTCP {
		return t.transport.SendRTCP(buf, &updated, flags)
	}
	return t.transport.SendRTP(buf, &updated, flags)
}

// protectRTCP использует выделенную RTCP сессию, а при её отсутствии —
// RTCP точку входа RTP сессии (общий ключ при rtcp-mux)
func (t *SecureTransport) protectRTCP(buf *PacketBuffer) error {
	if t.sendRtcpSession != nil {
		return t.sendRtcpSession.ProtectRTCP(buf)
	}
	return t.sendSession.ProtectRTCP(buf)
}

// unprotectRTCP зеркально protectRTCP для принимающей стороны
func (t *SecureTransport) unprotectRTCP(buf *PacketBuffer) error {
	if t.recvRtcpSession != nil {
		return t.recvRtcpSession.UnprotectRTCP(buf)
	}
	return t.recvSession.UnprotectRTCP(buf)
}

// onPacketReceived обрабатывает сырой пакет от нижележащего транспорта.
// Отказ аутентификации не распространяется к приложению: пакет молча
// отбрасывается с диагностикой, обработка следующих пакетов продолжается.
func (t *SecureTransport) onPacketReceived(isRTCP bool, buf *PacketBuffer, receivedAt time.Time) {
	if !t.IsActive() {
		t.metrics.incDropped("inactive")
		t.sink.OnDiagnostic(DiagnosticEvent{
			Operation:   "receive",
			ContentName: t.contentName,
			IsRTCP:      isRTCP,
			Size:        buf.Len(),
			Message:     "пакет на неактивном транспорте отброшен",
		})
		return
	}

	var err error
	if isRTCP {
		err = t.unprotectRTCP(buf)
	} else {
		err = t.recvSession.UnprotectRTP(buf)
	}
	if err != nil {
		t.metrics.incUnprotectError(isRTCP)
		// Поля извлекаются из все еще зашифрованного буфера
		t.emitPacketFailure("unprotect", isRTCP, buf, err)
		return
	}
	t.metrics.incUnprotected(isRTCP)

	if t.receiveHandler != nil {
		t.receiveHandler(isRTCP, buf, receivedAt)
	}
}

// onReadyToSend передает сигнал готовности без изменений
func (t *SecureTransport) onReadyToSend(ready bool) {
	if t.readyHandler != nil {
		t.readyHandler(ready)
	}
}

// emitPacketFailure отправляет в сток диагностики несекретные поля
// заголовка пакета, не прошедшего криптообработку
func (t *SecureTransport) emitPacketFailure(operation string, isRTCP bool, buf *PacketBuffer, err error) {
	ev := DiagnosticEvent{
		Operation:   operation,
		ContentName: t.contentName,
		IsRTCP:      isRTCP,
		Size:        buf.Len(),
		SeqNum:      UnknownSeqNum,
		SSRC:        UnknownSSRC,
		RtcpType:    UnknownRtcpType,
		Err:         err,
	}
	if isRTCP {
		ev.RtcpType = rtcpPacketType(buf.Data())
		ev.Message = "отказ криптообработки RTCP пакета"
	} else {
		ev.SeqNum = rtpSeqNum(buf.Data())
		ev.SSRC = rtpSSRC(buf.Data())
		ev.Message = "отказ криптообработки RTP пакета"
	}
	t.sink.OnDiagnostic(ev)
}

// fire переводит машину состояний, игнорируя переход в то же состояние
func (t *SecureTransport) fire(event string) {
	if err := t.machine.Event(context.Background(), event); err != nil {
		var same fsm.NoTransitionError
		if errors.As(err, &same) {
			return
		}
		// Матрица переходов допускает оба события из любого состояния
		panic(fmt.Sprintf("srtp: недопустимый переход состояния %q: %v", event, err))
	}
}

// closeSession закрывает сессию и обнуляет слот
func (t *SecureTransport) closeSession(slot *CryptoSession) {
	if *slot != nil {
		_ = (*slot).Close()
		*slot = nil
	}
}

// Close сбрасывает сессии и закрывает нижележащий транспорт
func (t *SecureTransport) Close() error {
	t.Reset()
	return t.transport.Close()
}
