package domain

// ExecutorTarget is one executor discovered on the master, the unit of work
// handed to the coordinator.
type ExecutorTarget struct {
	Worker     string `json:"worker" yaml:"worker" mapstructure:"worker"`
	ExecutorID int    `json:"executor_id" yaml:"executor_id" mapstructure:"executor_id"`
}

// Endpoint builds the descriptor of one of the target's streams.
func (t ExecutorTarget) Endpoint(appID string, kind StreamKind) Endpoint {
	return Endpoint{
		Worker:     t.Worker,
		AppID:      appID,
		ExecutorID: t.ExecutorID,
		Stream:     kind,
	}
}
