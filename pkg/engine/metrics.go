package engine

import "time"

// Metrics is the narrow instrumentation surface an Engine reports
// through; pkg/metrics implements it with Prometheus collectors.
type Metrics interface {
	SessionJoined(documentID string)
	SessionLeft(documentID string)
	OperationAdmitted(documentID string)
	OperationAbsorbed(documentID string)
	OperationRejected(documentID string)
	FlushDuration(documentID string, d time.Duration)
	FlushBatchSize(documentID string, n int)
	StoreSaveFailure(documentID string)
}

type noopMetrics struct{}

func (noopMetrics) SessionJoined(string)                  {}
func (noopMetrics) SessionLeft(string)                    {}
func (noopMetrics) OperationAdmitted(string)               {}
func (noopMetrics) OperationAbsorbed(string)                {}
func (noopMetrics) OperationRejected(string)                {}
func (noopMetrics) FlushDuration(string, time.Duration)     {}
func (noopMetrics) FlushBatchSize(string, int)              {}
func (noopMetrics) StoreSaveFailure(string)                  {}
