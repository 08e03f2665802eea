package srtp

import "fmt"

// PacketBuffer представляет пакетный буфер с логической длиной внутри
// фиксированной емкости. Операции защиты/снятия защиты изменяют
// содержимое на месте: защита увеличивает логическую длину на размер
// аутентификационного тега, снятие защиты уменьшает её. Перераспределение
// памяти не выполняется — рост ограничен емкостью, заданной при создании.
type PacketBuffer struct {
	data   []byte // backing storage, len(data) == емкость
	length int    // логическая длина, 0 <= length <= len(data)
}

// NewPacketBuffer создает пустой буфер заданной емкости
func NewPacketBuffer(capacity int) *PacketBuffer {
	return &PacketBuffer{data: make([]byte, capacity)}
}

// NewPacketBufferFrom создает буфер с копией payload и дополнительным
// запасом емкости headroom для роста при защите пакета
func NewPacketBufferFrom(payload []byte, headroom int) *PacketBuffer {
	b := &PacketBuffer{
		data:   make([]byte, len(payload)+headroom),
		length: len(payload),
	}
	copy(b.data, payload)
	return b
}

// Data возвращает срез логического содержимого буфера
func (b *PacketBuffer) Data() []byte {
	return b.data[:b.length]
}

// Full возвращает весь backing-срез буфера (до полной емкости).
// Используется операциями, которым нужно писать за логической длиной.
func (b *PacketBuffer) Full() []byte {
	return b.data
}

// Len возвращает логическую длину
func (b *PacketBuffer) Len() int {
	return b.length
}

// Capacity возвращает фиксированную емкость
func (b *PacketBuffer) Capacity() int {
	return len(b.data)
}

// SetLen устанавливает логическую длину в пределах емкости
func (b *PacketBuffer) SetLen(n int) error {
	if n < 0 || n > len(b.data) {
		return wrapSecureError(ErrorCodeBufferCapacity,
			"логическая длина вне емкости буфера",
			fmt.Errorf("длина %d, емкость %d", n, len(b.data)))
	}
	b.length = n
	return nil
}
