package model

// Assignment is the derived, non-persisted result of resolving which
// credential a subscriber uses for a service. Credential is nil only when no
// credential is available. An empty Alert means there is nothing to report.
type Assignment struct {
	Credential *Credential
	Alert      string
	DaysActive int
	Manual     bool
	Overflow   bool
}

// CredentialHealth is the operator-facing renewal classification of a
// credential.
type CredentialHealth struct {
	Status        HealthStatus
	Label         string
	DaysActive    int
	DaysRemaining int
}

// CredentialLoad pairs a credential with its health and the number of
// subscribers currently mapped to it.
type CredentialLoad struct {
	Credential  Credential
	Health      CredentialHealth
	Subscribers int
}
