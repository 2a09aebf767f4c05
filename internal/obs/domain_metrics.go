package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// DepositSessionTotal counts checkout session creation outcomes.
	DepositSessionTotal *prometheus.CounterVec
	// DepositWebhookTotal counts inbound provider webhook processing outcomes.
	DepositWebhookTotal *prometheus.CounterVec
	// LedgerCreditTotal counts ledger credit attempts by result.
	LedgerCreditTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		DepositSessionTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deposit_session_total",
			Help:      "Count of checkout session creation outcomes.",
		}, []string{"result"})
		DepositWebhookTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deposit_webhook_total",
			Help:      "Count of processed provider webhooks by outcome.",
		}, []string{"result"})
		LedgerCreditTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_credit_total",
			Help:      "Count of ledger credit attempts by result.",
		}, []string{"result"})
		reg.MustRegister(DepositSessionTotal, DepositWebhookTotal, LedgerCreditTotal)
	})
}
