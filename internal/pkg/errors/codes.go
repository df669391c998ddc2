package errors

// Error codes returned to API clients.
const (
	CodeRouteNotFound           = "ROUTE_NOT_FOUND"
	CodeNoRoutesConfigured      = "NO_ROUTES_CONFIGURED"
	CodeApplicationCodeNotFound = "APPLICATION_CODE_NOT_FOUND"
	CodeFormDefinitionMissing   = "FORM_DEFINITION_MISSING"
	CodeInvalidSubmission       = "INVALID_SUBMISSION"
	CodeUnauthorizedApprover    = "UNAUTHORIZED_APPROVER"
	CodeInvalidState            = "INVALID_STATE"
	CodeValidationFailed        = "VALIDATION_FAILED"
	CodeApplicationNotFound     = "APPLICATION_NOT_FOUND"
	CodeInternal                = "INTERNAL_ERROR"
	CodeUnauthenticated         = "UNAUTHENTICATED"
)

// MessageNoLongerActionable is shown for Unauthorized and InvalidState, which
// are expected outcomes of concurrent use.
const MessageNoLongerActionable = "this request can no longer be acted on"
