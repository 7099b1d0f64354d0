package metrics

import "time"

// NoopMetrics is a no-operation implementation of Recorder.
// All methods are empty, providing zero overhead when metrics are disabled.
type NoopMetrics struct{}

// Ensure NoopMetrics implements Recorder interface at compile time
var _ Recorder = (*NoopMetrics)(nil)

// NewNoopMetrics creates a new no-operation metrics recorder
func NewNoopMetrics() Recorder {
	return &NoopMetrics{}
}

func (n *NoopMetrics) RecordGateDecision(result string)                                  {}
func (n *NoopMetrics) RecordLogin(domain, method string, success bool)                   {}
func (n *NoopMetrics) RecordRegistration(domain string, success bool)                    {}
func (n *NoopMetrics) RecordAccountLockout()                                             {}
func (n *NoopMetrics) RecordTokenIssued(domain, category string, duration time.Duration) {}
func (n *NoopMetrics) RecordVerificationToken(purpose string, consumed bool)             {}
func (n *NoopMetrics) RecordTicketIssued(success bool)                                   {}
func (n *NoopMetrics) RecordTicketRedeemed(result string)                                {}
