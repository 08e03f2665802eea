package srtp

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics собирает счетчики защищенного транспорта для Prometheus.
// Все методы nil-безопасны: транспорт без метрик работает без проверок
// на вызывающей стороне.
type Metrics struct {
	packetsProtected   *prometheus.CounterVec // media -> счетчик
	packetsUnprotected *prometheus.CounterVec
	protectErrors      *prometheus.CounterVec
	unprotectErrors    *prometheus.CounterVec
	packetsDropped     *prometheus.CounterVec // причина -> счетчик
	keyingTotal        prometheus.Counter
	keyingErrors       prometheus.Counter
}

// MetricsConfig конфигурация метрик транспорта
type MetricsConfig struct {
	Namespace string
	Subsystem string
}

// DefaultMetricsConfig возвращает конфигурацию по умолчанию
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "media",
		Subsystem: "srtp",
	}
}

// NewMetrics создает и регистрирует метрики в переданном регистре.
// При nil регистре используется prometheus.DefaultRegisterer.
func NewMetrics(cfg MetricsConfig, reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		packetsProtected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name: "packets_protected_total",
			Help: "Количество успешно защищенных пакетов",
		}, []string{"media"}),
		packetsUnprotected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name: "packets_unprotected_total",
			Help: "Количество успешно расшифрованных пакетов",
		}, []string{"media"}),
		protectErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name: "protect_errors_total",
			Help: "Количество отказов защиты исходящих пакетов",
		}, []string{"media"}),
		unprotectErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name: "unprotect_errors_total",
			Help: "Количество отказов аутентификации входящих пакетов",
		}, []string{"media"}),
		packetsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name: "packets_dropped_total",
			Help: "Количество отброшенных пакетов по причинам",
		}, []string{"reason"}),
		keyingTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name: "keying_total",
			Help: "Количество установок ключевого материала",
		}),
		keyingErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name: "keying_errors_total",
			Help: "Количество отклоненных установок ключей",
		}),
	}

	collectors := []prometheus.Collector{
		m.packetsProtected, m.packetsUnprotected,
		m.protectErrors, m.unprotectErrors,
		m.packetsDropped, m.keyingTotal, m.keyingErrors,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func mediaLabel(isRTCP bool) string {
	if isRTCP {
		return "rtcp"
	}
	return "rtp"
}

func (m *Metrics) incProtected(isRTCP bool) {
	if m != nil {
		m.packetsProtected.WithLabelValues(mediaLabel(isRTCP)).Inc()
	}
}

func (m *Metrics) incUnprotected(isRTCP bool) {
	if m != nil {
		m.packetsUnprotected.WithLabelValues(mediaLabel(isRTCP)).Inc()
	}
}

func (m *Metrics) incProtectError(isRTCP bool) {
	if m != nil {
		m.protectErrors.WithLabelValues(mediaLabel(isRTCP)).Inc()
	}
}

func (m *Metrics) incUnprotectError(isRTCP bool) {
	if m != nil {
		m.unprotectErrors.WithLabelValues(mediaLabel(isRTCP)).Inc()
	}
}

func (m *Metrics) incDropped(reason string) {
	if m != nil {
		m.packetsDropped.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) incKeying(failed bool) {
	if m == nil {
		return
	}
	m.keyingTotal.Inc()
	if failed {
		m.keyingErrors.Inc()
	}
}
