package srtp

import (
	"encoding/base64"
	"testing"

	"github.com/pion/sdp/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseCryptoAttribute проверяет разбор a=crypto атрибутов (RFC 4568)
func TestParseCryptoAttribute(t *testing.T) {
	key80 := testKey(CipherSuiteAes128CmHmacSha1_80, 0x10)
	key80B64 := base64.StdEncoding.EncodeToString(key80)

	tests := []struct {
		name        string
		value       string
		expectError bool
		expectTag   int
		expectSuite CipherSuite
	}{
		{
			name:        "Базовый атрибут",
			value:       "1 AES_CM_128_HMAC_SHA1_80 inline:" + key80B64,
			expectTag:   1,
			expectSuite: CipherSuiteAes128CmHmacSha1_80,
		},
		{
			name:        "С lifetime и MKI",
			value:       "2 AES_CM_128_HMAC_SHA1_80 inline:" + key80B64 + "|2^20|1:32",
			expectTag:   2,
			expectSuite: CipherSuiteAes128CmHmacSha1_80,
		},
		{
			name:        "С session-параметрами",
			value:       "3 AES_CM_128_HMAC_SHA1_80 inline:" + key80B64 + " UNENCRYPTED_SRTCP",
			expectTag:   3,
			expectSuite: CipherSuiteAes128CmHmacSha1_80,
		},
		{
			name:        "Неизвестный suite",
			value:       "1 F8_128_HMAC_SHA1_80 inline:" + key80B64,
			expectError: true,
		},
		{
			name:        "Некорректный base64",
			value:       "1 AES_CM_128_HMAC_SHA1_80 inline:@@@@",
			expectError: true,
		},
		{
			name:        "Короткий ключ",
			value:       "1 AES_CM_128_HMAC_SHA1_80 inline:" + base64.StdEncoding.EncodeToString(make([]byte, 16)),
			expectError: true,
		},
		{
			name:        "Не inline метод",
			value:       "1 AES_CM_128_HMAC_SHA1_80 uri:https://example.com/key",
			expectError: true,
		},
		{
			name:        "Мало полей",
			value:       "1 AES_CM_128_HMAC_SHA1_80",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params, err := ParseCryptoAttribute(tt.value)
			if tt.expectError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectTag, params.Tag)
			assert.Equal(t, tt.expectSuite, params.Suite)
			assert.Equal(t, key80, params.Key)
		})
	}
}

// TestParseCryptoAttributes проверяет извлечение атрибутов из
// медиа-секции SDP с пропуском неразборчивых
func TestParseCryptoAttributes(t *testing.T) {
	key := testKey(CipherSuiteAes128CmHmacSha1_80, 0x20)
	good := "1 AES_CM_128_HMAC_SHA1_80 inline:" + base64.StdEncoding.EncodeToString(key)

	media := &sdp.MediaDescription{
		MediaName: sdp.MediaName{Media: "audio"},
		Attributes: []sdp.Attribute{
			{Key: "rtpmap", Value: "0 PCMU/8000"},
			{Key: "crypto", Value: good},
			{Key: "crypto", Value: "2 UNKNOWN_SUITE inline:AAAA"},
		},
	}

	params := ParseCryptoAttributes(media)
	require.Len(t, params, 1, "неразборчивый атрибут пропущен")
	assert.Equal(t, 1, params[0].Tag)
	assert.Equal(t, key, params[0].Key)
}

// TestFormatCryptoAttributeRoundTrip проверяет сериализацию и обратный
// разбор crypto атрибута
func TestFormatCryptoAttributeRoundTrip(t *testing.T) {
	original := CryptoParams{
		Tag:   4,
		Suite: CipherSuiteAeadAes128Gcm,
		Key:   testKey(CipherSuiteAeadAes128Gcm, 0x30),
	}

	parsed, err := ParseCryptoAttribute(FormatCryptoAttribute(original))
	require.NoError(t, err)
	assert.Equal(t, original, parsed)
}
