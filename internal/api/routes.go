package api

const (
	HealthCheckRoute = "/healthz"
	AboutRoute       = "/icanhazverita"
	JWKSRoute        = "/.well-known/jwks.json"

	IssueTokenRoute = "/v1/token/issue"
	WhoAmIRoute     = "/v1/auth/whoami"

	RequestsParent      = "/v1/requests"
	CreateRequestRoute  = RequestsParent
	ListRequestsRoute   = RequestsParent
	ApproveRequestRoute = RequestsParent + "/{id}/approve"
	RejectRequestRoute  = RequestsParent + "/{id}/reject"
	ResolveKeyRoute     = RequestsParent + "/{id}/key"
	SealFieldRoute      = RequestsParent + "/{id}/seal"

	AdminKeySetRoute = "/v1/admin/keyset"
)
