package errs

// Error codes, grouped per failure class. 1xxx auth, 2xxx room access,
// 3xxx payload validation.
const (
	CodeTokenInvalid = 1001
	CodeTokenExpired = 1002
	CodeAccessDenied = 2001
	CodeAgentOnly    = 2002
	CodeEmptyContent = 3001
	CodeBadStatus    = 3002
	CodeBadPayload   = 3003
	CodeUnknownOp    = 3004
)

var (
	ErrTokenInvalid = NewCodeError(CodeTokenInvalid, "invalid token")
	ErrTokenExpired = NewCodeError(CodeTokenExpired, "token expired")

	ErrAccessDenied = NewCodeError(CodeAccessDenied, "Access denied")
	ErrAgentOnly    = NewCodeError(CodeAgentOnly, "only agents can update status")

	ErrEmptyContent = NewCodeError(CodeEmptyContent, "empty content")
	ErrBadStatus    = NewCodeError(CodeBadStatus, "invalid status")
	ErrBadPayload   = NewCodeError(CodeBadPayload, "malformed payload")
	ErrUnknownOp    = NewCodeError(CodeUnknownOp, "unknown op")
)
