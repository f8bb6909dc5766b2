package errors

// Error codes used across the diffsync server and client.
const (
	CodeDuplicateClient = "ERR_DUPLICATE_CLIENT"
	CodeUnknownClient   = "ERR_UNKNOWN_CLIENT"
	CodeStore           = "ERR_STORE"
	CodePatch           = "ERR_PATCH"
	CodeProtocol        = "ERR_PROTOCOL"
)
