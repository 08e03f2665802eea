package srtp

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

const (
	// DefaultBufferSize размер приемного буфера (стандартный MTU)
	DefaultBufferSize = 1500

	// DSCPExpeditedForwarding значение DSCP для голосового трафика (EF)
	DSCPExpeditedForwarding = 46
)

// isRTCPPacket демультиплексирует rtcp-mux поток по диапазону
// packet type (RFC 5761 Section 4): значения 192..223 второго байта
// зарезервированы под RTCP и не пересекаются с RTP payload types.
func isRTCPPacket(data []byte) bool {
	if len(data) < 2 {
		return false
	}
	return data[1] >= 192 && data[1] <= 223
}

// UDPTransportConfig конфигурация UDP транспорта
type UDPTransportConfig struct {
	LocalAddr  string // Локальный адрес для привязки
	RemoteAddr string // Удаленный адрес для отправки
	BufferSize int    // Размер буфера для чтения
	DSCP       int    // DSCP маркировка исходящих пакетов
}

// DefaultUDPTransportConfig возвращает конфигурацию по умолчанию
func DefaultUDPTransportConfig() UDPTransportConfig {
	return UDPTransportConfig{
		BufferSize: DefaultBufferSize,
		DSCP:       DSCPExpeditedForwarding,
	}
}

// UDPTransport реализует PacketTransport поверх UDP с rtcp-mux:
// RTP и RTCP мультиплексируются в одном канале, входящие пакеты
// классифицируются по диапазону packet type. Переносит уже
// защищенные буферы, криптографии не содержит.
type UDPTransport struct {
	conn       *net.UDPConn
	remoteAddr *net.UDPAddr
	config     UDPTransportConfig

	packetHandler PacketHandler
	readyHandler  ReadyHandler

	active bool
	mutex  sync.RWMutex
	done   chan struct{}
}

var _ PacketTransport = (*UDPTransport)(nil)

// NewUDPTransport создает UDP транспорт для защищенных пакетов
func NewUDPTransport(config UDPTransportConfig) (*UDPTransport, error) {
	if config.BufferSize == 0 {
		config.BufferSize = DefaultBufferSize
	}

	localAddr, err := net.ResolveUDPAddr("udp", config.LocalAddr)
	if err != nil {
		return nil, fmt.Errorf("ошибка разрешения локального адреса: %w", err)
	}

	conn, err := net.ListenUDP("udp", localAddr)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания UDP соединения: %w", err)
	}

	// Настраиваем сокет для голосового трафика
	if err := setSockOptForVoice(conn, config.DSCP); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ошибка настройки сокета: %w", err)
	}

	t := &UDPTransport{
		conn:   conn,
		config: config,
		active: true,
		done:   make(chan struct{}),
	}

	if config.RemoteAddr != "" {
		remoteAddr, err := net.ResolveUDPAddr("udp", config.RemoteAddr)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("ошибка разрешения удаленного адреса: %w", err)
		}
		t.remoteAddr = remoteAddr
	}

	go t.readLoop()
	return t, nil
}

// SendRTP отправляет защищенный RTP пакет
func (t *UDPTransport) SendRTP(buf *PacketBuffer, opts *PacketOptions, flags int) error {
	return t.send(buf)
}

// SendRTCP отправляет защищенный RTCP пакет. При rtcp-mux RTCP уходит
// в тот же канал, что и RTP.
func (t *UDPTransport) SendRTCP(buf *PacketBuffer, opts *PacketOptions, flags int) error {
	return t.send(buf)
}

func (t *UDPTransport) send(buf *PacketBuffer) error {
	t.mutex.RLock()
	active := t.active
	conn := t.conn
	remoteAddr := t.remoteAddr
	t.mutex.RUnlock()

	if !active {
		return newSecureError(ErrorCodeTransportClosed, "транспорт не активен")
	}
	if remoteAddr == nil {
		return fmt.Errorf("удаленный адрес не установлен")
	}

	if _, err := conn.WriteToUDP(buf.Data(), remoteAddr); err != nil {
		return fmt.Errorf("ошибка отправки UDP пакета: %w", err)
	}
	return nil
}

// SetPacketHandler устанавливает обработчик принятых пакетов.
// Пакеты, пришедшие до установки обработчика, отбрасываются.
func (t *UDPTransport) SetPacketHandler(handler PacketHandler) {
	t.mutex.Lock()
	t.packetHandler = handler
	t.mutex.Unlock()
}

// SetReadyHandler устанавливает обработчик готовности. UDP сокет готов
// к отправке сразу после создания, поэтому обработчик уведомляется
// немедленно.
func (t *UDPTransport) SetReadyHandler(handler ReadyHandler) {
	t.mutex.Lock()
	t.readyHandler = handler
	active := t.active
	t.mutex.Unlock()

	if handler != nil {
		handler(active)
	}
}

// readLoop принимает датаграммы и доставляет их обработчику с отметкой
// времени приема и RTP/RTCP дискриминатором
func (t *UDPTransport) readLoop() {
	readBuf := make([]byte, t.config.BufferSize)
	for {
		n, _, err := t.conn.ReadFromUDP(readBuf)
		if err != nil {
			select {
			case <-t.done:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}
		receivedAt := time.Now()

		t.mutex.RLock()
		handler := t.packetHandler
		t.mutex.RUnlock()
		if handler == nil {
			continue
		}

		// Копия: readBuf переиспользуется следующим чтением
		buf := NewPacketBufferFrom(readBuf[:n], 0)
		handler(isRTCPPacket(buf.Data()), buf, receivedAt)
	}
}

// LocalAddr возвращает локальный адрес транспорта
func (t *UDPTransport) LocalAddr() net.Addr {
	return t.conn.LocalAddr()
}

// Close закрывает транспорт
func (t *UDPTransport) Close() error {
	t.mutex.Lock()
	if !t.active {
		t.mutex.Unlock()
		return nil
	}
	t.active = false
	handler := t.readyHandler
	t.mutex.Unlock()

	close(t.done)
	if handler != nil {
		handler(false)
	}
	return t.conn.Close()
}

// setSockOptForVoice настраивает UDP сокет для голосового трафика:
// платформо-специфичный приоритет и DSCP маркировка
func setSockOptForVoice(conn *net.UDPConn, dscp int) error {
	rawConn, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	err = rawConn.Control(func(fd uintptr) {
		sockErr = setVoiceSockOpts(fd, dscp)
	})
	if err != nil {
		return err
	}
	return sockErr
}
