package srtp

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/pion/dtls/v2"
)

// Метка экспорта ключевого материала DTLS-SRTP (RFC 5764 Section 4.2)
const dtlsSrtpExporterLabel = "EXTRACTOR-dtls_srtp"

// DefaultHandshakeTimeout таймаут DTLS рукопожатия по умолчанию
const DefaultHandshakeTimeout = 30 * time.Second

// DTLSTransportConfig конфигурация DTLS транспорта
type DTLSTransportConfig struct {
	LocalAddr  string
	RemoteAddr string
	BufferSize int

	Certificates       []tls.Certificate
	RootCAs            *x509.CertPool
	ServerName         string
	InsecureSkipVerify bool
	HandshakeTimeout   time.Duration
}

// DefaultDTLSTransportConfig возвращает конфигурацию по умолчанию
func DefaultDTLSTransportConfig() DTLSTransportConfig {
	return DTLSTransportConfig{
		BufferSize:       DefaultBufferSize,
		HandshakeTimeout: DefaultHandshakeTimeout,
	}
}

// DTLSTransport реализует PacketTransport поверх установленного DTLS
// соединения с rtcp-mux демультиплексированием входящих датаграмм.
// DTLS здесь — несущий канал: защита медиапакетов остается на
// SecureTransport, а рукопожатие DTLS дает ключевой материал для
// SetRtpParams через ExportSessionKeys (DTLS-SRTP, RFC 5764).
type DTLSTransport struct {
	conn   *dtls.Conn
	config DTLSTransportConfig

	packetHandler PacketHandler
	readyHandler  ReadyHandler

	active bool
	mutex  sync.RWMutex
	done   chan struct{}
}

var _ PacketTransport = (*DTLSTransport)(nil)

// NewDTLSClientTransport устанавливает DTLS соединение как клиент
// и создает транспорт поверх него
func NewDTLSClientTransport(config DTLSTransportConfig) (*DTLSTransport, error) {
	if config.BufferSize == 0 {
		config.BufferSize = DefaultBufferSize
	}
	if config.HandshakeTimeout == 0 {
		config.HandshakeTimeout = DefaultHandshakeTimeout
	}

	conn, err := net.Dial("udp", config.RemoteAddr)
	if err != nil {
		return nil, fmt.Errorf("ошибка UDP соединения для DTLS: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.HandshakeTimeout)
	defer cancel()

	dtlsConn, err := dtls.ClientWithContext(ctx, conn, &dtls.Config{
		Certificates:         config.Certificates,
		RootCAs:              config.RootCAs,
		ServerName:           config.ServerName,
		InsecureSkipVerify:   config.InsecureSkipVerify,
		ExtendedMasterSecret: dtls.RequireExtendedMasterSecret,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ошибка DTLS рукопожатия: %w", err)
	}
	return NewDTLSTransportFromConn(dtlsConn, config), nil
}

// NewDTLSTransportFromConn создает транспорт поверх уже установленного
// DTLS соединения (например, принятого серверным слушателем)
func NewDTLSTransportFromConn(conn *dtls.Conn, config DTLSTransportConfig) *DTLSTransport {
	if config.BufferSize == 0 {
		config.BufferSize = DefaultBufferSize
	}
	t := &DTLSTransport{
		conn:   conn,
		config: config,
		active: true,
		done:   make(chan struct{}),
	}
	go t.readLoop()
	return t
}

// SendRTP отправляет защищенный RTP пакет в DTLS канал
func (t *DTLSTransport) SendRTP(buf *PacketBuffer, opts *PacketOptions, flags int) error {
	return t.send(buf)
}

// SendRTCP отправляет защищенный RTCP пакет в тот же канал (rtcp-mux)
func (t *DTLSTransport) SendRTCP(buf *PacketBuffer, opts *PacketOptions, flags int) error {
	return t.send(buf)
}

func (t *DTLSTransport) send(buf *PacketBuffer) error {
	t.mutex.RLock()
	active := t.active
	conn := t.conn
	t.mutex.RUnlock()

	if !active {
		return newSecureError(ErrorCodeTransportClosed, "транспорт не активен")
	}
	if _, err := conn.Write(buf.Data()); err != nil {
		return fmt.Errorf("ошибка отправки в DTLS канал: %w", err)
	}
	return nil
}

// SetPacketHandler устанавливает обработчик принятых пакетов
func (t *DTLSTransport) SetPacketHandler(handler PacketHandler) {
	t.mutex.Lock()
	t.packetHandler = handler
	t.mutex.Unlock()
}

// SetReadyHandler устанавливает обработчик готовности. Соединение
// уже установлено, обработчик уведомляется немедленно.
func (t *DTLSTransport) SetReadyHandler(handler ReadyHandler) {
	t.mutex.Lock()
	t.readyHandler = handler
	active := t.active
	t.mutex.Unlock()

	if handler != nil {
		handler(active)
	}
}

func (t *DTLSTransport) readLoop() {
	readBuf := make([]byte, t.config.BufferSize)
	for {
		n, err := t.conn.Read(readBuf)
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

		buf := NewPacketBufferFrom(readBuf[:n], 0)
		handler(isRTCPPacket(buf.Data()), buf, receivedAt)
	}
}

// Close закрывает DTLS соединение
func (t *DTLSTransport) Close() error {
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

// SessionKeys ключевой материал обеих направлений, выведенный из
// DTLS рукопожатия. Каждый ключ — конкатенация мастер-ключа и
// мастер-соли в формате SetRtpParams.
type SessionKeys struct {
	SendKey []byte
	RecvKey []byte
}

// ExportSessionKeys выводит SRTP ключи из DTLS соединения по RFC 5764:
// экспортер выдает client/server write ключи и соли, направление
// определяется ролью в рукопожатии
func (t *DTLSTransport) ExportSessionKeys(suite CipherSuite, isClient bool) (SessionKeys, error) {
	keyLen := suite.KeyLen()
	saltLen := suite.SaltLen()
	if keyLen == 0 {
		return SessionKeys{}, newSecureError(ErrorCodeSuiteUnsupported, "шифронабор отклонен")
	}

	state := t.conn.ConnectionState()
	material, err := state.ExportKeyingMaterial(dtlsSrtpExporterLabel, nil, 2*(keyLen+saltLen))
	if err != nil {
		return SessionKeys{}, fmt.Errorf("ошибка экспорта ключевого материала: %w", err)
	}

	// Раскладка RFC 5764: client_key | server_key | client_salt | server_salt
	offset := 0
	clientKey := material[offset : offset+keyLen]
	offset += keyLen
	serverKey := material[offset : offset+keyLen]
	offset += keyLen
	clientSalt := material[offset : offset+saltLen]
	offset += saltLen
	serverSalt := material[offset : offset+saltLen]

	client := append(append([]byte(nil), clientKey...), clientSalt...)
	server := append(append([]byte(nil), serverKey...), serverSalt...)

	if isClient {
		return SessionKeys{SendKey: client, RecvKey: server}, nil
	}
	return SessionKeys{SendKey: server, RecvKey: client}, nil
}
