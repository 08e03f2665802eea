// Package srtp реализует защищенный медиа транспорт для VoIP приложений.
//
// Пакет располагается между RTP/RTCP компонентами приложения и
// незашифрованным пакетным транспортом: исходящие пакеты прозрачно
// защищаются (SRTP/SRTCP, RFC 3711), входящие — аутентифицируются и
// расшифровываются. Ключевой материал поступает уже согласованным
// (SDES из SDP или экспорт из DTLS рукопожатия по RFC 5764).
//
// # Основные возможности
//
//   - Независимые криптографические контексты RTP и RTCP с раздельными
//     send/recv ключами и шифронаборами
//   - Fallback RTCP на ключи RTP сессии для rtcp-mux потоков
//   - Внешняя аутентификация: досчет HMAC тега нижележащим слоем после
//     перезаписи времени отправки в header extension
//   - Fail-secure обработка ошибок: неаутентифицированные входящие
//     пакеты молча отбрасываются с диагностикой несекретных полей
//   - Шифронаборы AES-CM + HMAC-SHA1 и AEAD AES-GCM поверх pion/srtp
//   - UDP и DTLS нижележащие транспорты с rtcp-mux
//   - Prometheus метрики и инжектируемый сток диагностики
//
// # Архитектура
//
//   - SecureTransport - фасад: машина состояний, сессии, пайплайн
//   - CryptoSession - однонаправленная криптографическая сессия
//   - PionSession - реализация CryptoSession поверх pion/srtp
//   - PacketTransport - интерфейс нижележащего транспорта
//   - UDPTransport, DTLSTransport - реализации PacketTransport
//   - PacketBuffer - буфер с логической длиной внутри фиксированной емкости
//
// # Быстрый старт
//
//	transport, err := srtp.NewUDPTransport(srtp.UDPTransportConfig{
//	    LocalAddr:  "0.0.0.0:20000",
//	    RemoteAddr: "192.0.2.10:20000",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	secure, err := srtp.NewSecureTransport(srtp.Config{
//	    ContentName: "audio",
//	    Transport:   transport,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer secure.Close()
//
//	secure.SetReceiveHandler(func(isRTCP bool, buf *srtp.PacketBuffer, at time.Time) {
//	    // расшифрованный пакет
//	})
//
//	if err := secure.SetRtpParams(
//	    srtp.CipherSuiteAes128CmHmacSha1_80, sendKey,
//	    srtp.CipherSuiteAes128CmHmacSha1_80, recvKey,
//	); err != nil {
//	    log.Fatal(err)
//	}
//
//	buf := srtp.NewPacketBufferFrom(packet, overhead)
//	err = secure.SendRtpPacket(buf, nil, 0)
//
// # Модель выполнения
//
// Все операции транспорта выполняются в одной последовательности
// исполнения вместе с доставкой пакетов нижележащего транспорта.
// Внутренних блокировок фасад не содержит: однопоточность
// предполагается, а не обеспечивается.
package srtp
