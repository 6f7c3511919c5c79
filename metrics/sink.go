package metrics

// Sink is the external monitoring collaborator. Implementations must be safe
// for concurrent use. Label sets must be stable per metric name.
type Sink interface {
	IncrementCounter(name string, amount float64, labels map[string]string)
	RecordHistogram(name string, value float64, labels map[string]string)
	SetGauge(name string, value float64, labels map[string]string)
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) IncrementCounter(string, float64, map[string]string) {}
func (NopSink) RecordHistogram(string, float64, map[string]string)  {}
func (NopSink) SetGauge(string, float64, map[string]string)         {}
