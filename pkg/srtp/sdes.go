package srtp

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/pion/sdp/v3"
)

// CryptoParams результат разбора a=crypto атрибута медиа-секции SDP
// (SDES, RFC 4568). Это формат доставки уже согласованного ключевого
// материала, а не протокол согласования: сами offer/answer обмены
// лежат выше этого слоя.
type CryptoParams struct {
	Tag   int
	Suite CipherSuite
	Key   []byte // мастер-ключ || мастер-соль, длина Suite.MasterKeyLen()
}

// ParseCryptoAttributes извлекает все разборчивые a=crypto атрибуты
// медиа-секции. Атрибуты с неподдерживаемыми наборами или
// некорректным ключевым материалом пропускаются.
func ParseCryptoAttributes(media *sdp.MediaDescription) []CryptoParams {
	var result []CryptoParams
	for _, attr := range media.Attributes {
		if attr.Key != "crypto" {
			continue
		}
		params, err := ParseCryptoAttribute(attr.Value)
		if err != nil {
			continue
		}
		result = append(result, params)
	}
	return result
}

// ParseCryptoAttribute разбирает значение одного a=crypto атрибута вида
//
//	1 AES_CM_128_HMAC_SHA1_80 inline:PS1uQCVeeCFCanVmcjkpPywjNWhcYD0mXXtxaVBR|2^20|1:32
//
// Session-параметры после key-параметров игнорируются.
func ParseCryptoAttribute(value string) (CryptoParams, error) {
	fields := strings.Fields(value)
	if len(fields) < 3 {
		return CryptoParams{}, fmt.Errorf("ожидается минимум 3 поля crypto атрибута, получено %d", len(fields))
	}

	tag, err := strconv.Atoi(fields[0])
	if err != nil {
		return CryptoParams{}, fmt.Errorf("некорректный tag crypto атрибута: %w", err)
	}

	suite := CipherSuiteFromName(fields[1])
	if suite == CipherSuiteUnknown {
		return CryptoParams{}, wrapSecureError(ErrorCodeSuiteUnsupported,
			"неизвестный crypto-suite", fmt.Errorf("%q", fields[1]))
	}

	// Первый key-параметр; несколько ключей разделяются ';'
	keyParam := strings.Split(fields[2], ";")[0]
	if !strings.HasPrefix(keyParam, "inline:") {
		return CryptoParams{}, fmt.Errorf("поддерживается только inline метод доставки ключа")
	}
	keyInfo := strings.TrimPrefix(keyParam, "inline:")

	// Отрезаем lifetime и MKI: "ключ|2^20|1:32"
	keyB64 := strings.Split(keyInfo, "|")[0]
	key, err := base64.StdEncoding.DecodeString(keyB64)
	if err != nil {
		return CryptoParams{}, fmt.Errorf("некорректная base64 кодировка ключа: %w", err)
	}
	if len(key) != suite.MasterKeyLen() {
		return CryptoParams{}, wrapSecureError(ErrorCodeKeyLengthInvalid,
			"длина ключа не соответствует набору",
			fmt.Errorf("набор %s требует %d байт, получено %d", suite, suite.MasterKeyLen(), len(key)))
	}

	return CryptoParams{Tag: tag, Suite: suite, Key: key}, nil
}

// FormatCryptoAttribute сериализует параметры в значение a=crypto
// атрибута для включения в offer/answer
func FormatCryptoAttribute(params CryptoParams) string {
	return fmt.Sprintf("%d %s inline:%s",
		params.Tag, params.Suite, base64.StdEncoding.EncodeToString(params.Key))
}
