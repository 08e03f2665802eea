package srtp

import (
	"log/slog"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
)

// Сентинельные значения для неразобранных полей
const (
	UnknownSeqNum   = -1
	UnknownSSRC     = uint32(0)
	UnknownRtcpType = -1
)

// DiagnosticEvent описывает событие отказа или перехода защищенного
// транспорта. Содержит только несекретные поля заголовка, извлеченные
// по возможности: ключи и содержимое пакетов в событие не попадают.
type DiagnosticEvent struct {
	Operation   string // protect | unprotect | send | receive | keying
	ContentName string
	IsRTCP      bool
	Size        int
	SeqNum      int    // UnknownSeqNum если заголовок не разобран
	SSRC        uint32 // UnknownSSRC если заголовок не разобран
	RtcpType    int    // UnknownRtcpType если заголовок не разобран
	Message     string
	Err         error
}

// DiagnosticSink принимает диагностические события транспорта.
// Инжектируется при создании, чтобы тесты проверяли события без
// привязки к процессному логгеру.
type DiagnosticSink interface {
	OnDiagnostic(ev DiagnosticEvent)
}

// slogSink реализация DiagnosticSink поверх log/slog
type slogSink struct {
	logger *slog.Logger
}

// NewSlogSink создает сток диагностики поверх slog логгера.
// При nil логгере используется slog.Default().
func NewSlogSink(logger *slog.Logger) DiagnosticSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &slogSink{logger: logger}
}

func (s *slogSink) OnDiagnostic(ev DiagnosticEvent) {
	attrs := []any{
		slog.String("content", ev.ContentName),
		slog.String("operation", ev.Operation),
		slog.Bool("rtcp", ev.IsRTCP),
		slog.Int("size", ev.Size),
	}
	if ev.IsRTCP {
		attrs = append(attrs, slog.Int("type", ev.RtcpType))
	} else {
		attrs = append(attrs, slog.Int("seqnum", ev.SeqNum), slog.Uint64("ssrc", uint64(ev.SSRC)))
	}
	if ev.Err != nil {
		attrs = append(attrs, slog.Any("error", ev.Err))
		s.logger.Error(ev.Message, attrs...)
		return
	}
	s.logger.Info(ev.Message, attrs...)
}

// nopSink сток, отбрасывающий события
type nopSink struct{}

func (nopSink) OnDiagnostic(DiagnosticEvent) {}

// rtpSeqNum извлекает sequence number из RTP пакета.
// Никогда не паникует и не изменяет буфер: при неразборчивом
// заголовке возвращает сентинель.
func rtpSeqNum(data []byte) int {
	var hdr rtp.Header
	if _, err := hdr.Unmarshal(data); err != nil {
		return UnknownSeqNum
	}
	return int(hdr.SequenceNumber)
}

// rtpSSRC извлекает SSRC из RTP пакета
func rtpSSRC(data []byte) uint32 {
	var hdr rtp.Header
	if _, err := hdr.Unmarshal(data); err != nil {
		return UnknownSSRC
	}
	return hdr.SSRC
}

// rtcpPacketType извлекает packet type из RTCP пакета
func rtcpPacketType(data []byte) int {
	var hdr rtcp.Header
	if err := hdr.Unmarshal(data); err != nil {
		return UnknownRtcpType
	}
	return int(hdr.Type)
}
