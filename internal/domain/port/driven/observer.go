package driven

import "github.com/ericfisherdev/sharedlogin/internal/domain/model"

// AssignmentObserver receives telemetry about engine results. Implementations
// must be safe for concurrent use.
type AssignmentObserver interface {
	ObserveAssignment(service string, a model.Assignment)
	ObserveImport(service string, imported, failed int)
}

// HealthObserver receives the result of each periodic credential health
// sweep. loads holds every stored credential, hidden ones included.
type HealthObserver interface {
	ObserveCredentialHealth(loads []model.CredentialLoad)
}
