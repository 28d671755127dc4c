package errors

var (
	ErrUnknown               = New(ERR_UNKNOWN, "unknown error")
	ErrInvalidArgument       = New(ERR_INVALID_ARGUMENT, "invalid argument")
	ErrThresholdExceeded     = New(ERR_THRESHOLD_EXCEEDED, "threshold exceeded")
	ErrNotFound              = New(ERR_NOT_FOUND, "not found")
	ErrProcessing            = New(ERR_PROCESSING, "error processing")
	ErrConfiguration         = New(ERR_CONFIGURATION, "configuration error")
	ErrContext               = New(ERR_CONTEXT, "context error")
	ErrContextCanceled       = New(ERR_CONTEXT_CANCELED, "context canceled")
	ErrError                 = New(ERR_ERROR, "generic error")
	ErrBlockNotFound         = New(ERR_BLOCK_NOT_FOUND, "block not found")
	ErrBlockInvalid          = New(ERR_BLOCK_INVALID, "block invalid")
	ErrBlockExists           = New(ERR_BLOCK_EXISTS, "block exists")
	ErrMissingLocalBlocks    = New(ERR_MISSING_LOCAL_BLOCKS, "missing local blocks")
	ErrCoinNotFound          = New(ERR_COIN_NOT_FOUND, "coin not found")
	ErrCoinInvalid           = New(ERR_COIN_INVALID, "coin invalid")
	ErrCoinConflict          = New(ERR_COIN_CONFLICT, "coin conflict")
	ErrCoinExists            = New(ERR_COIN_EXISTS, "coin exists")
	ErrServiceUnavailable    = New(ERR_SERVICE_UNAVAILABLE, "service unavailable")
	ErrServiceNotStarted     = New(ERR_SERVICE_NOT_STARTED, "service not started")
	ErrServiceError          = New(ERR_SERVICE_ERROR, "service error")
	ErrStorageUnavailable    = New(ERR_STORAGE_UNAVAILABLE, "storage unavailable")
	ErrStorageNotStarted     = New(ERR_STORAGE_NOT_STARTED, "storage not started")
	ErrStorageError          = New(ERR_STORAGE_ERROR, "storage error")
	ErrNetworkError          = New(ERR_NETWORK_ERROR, "network error")
	ErrNetworkTimeout        = New(ERR_NETWORK_TIMEOUT, "network timeout")
	ErrNetworkInvalidResp    = New(ERR_NETWORK_INVALID_RESPONSE, "invalid network response")
	ErrNetworkPeerMalicious  = New(ERR_NETWORK_PEER_MALICIOUS, "peer returned a malicious response")
	ErrProofInvalid          = New(ERR_PROOF_INVALID, "proof invalid")
	ErrInclusionProofFailed  = New(ERR_INCLUSION_PROOF_FAILED, "inclusion proof failed")
	ErrSubscriptionLimit     = New(ERR_SUBSCRIPTION_LIMIT, "subscription limit reached")
	ErrSyncSessionTerminated = New(ERR_SYNC_SESSION_TERMINATED, "sync session terminated")
)

// errors initialization functions

func NewUnknownError(message string, params ...interface{}) error {
	return New(ERR_UNKNOWN, message, params...)
}
func NewInvalidArgumentError(message string, params ...interface{}) error {
	return New(ERR_INVALID_ARGUMENT, message, params...)
}
func NewThresholdExceededError(message string, params ...interface{}) error {
	return New(ERR_THRESHOLD_EXCEEDED, message, params...)
}
func NewNotFoundError(message string, params ...interface{}) error {
	return New(ERR_NOT_FOUND, message, params...)
}
func NewProcessingError(message string, params ...interface{}) error {
	return New(ERR_PROCESSING, message, params...)
}
func NewConfigurationError(message string, params ...interface{}) error {
	return New(ERR_CONFIGURATION, message, params...)
}
func NewContextError(message string, params ...interface{}) error {
	return New(ERR_CONTEXT, message, params...)
}
func NewContextCanceledError(message string, params ...interface{}) error {
	return New(ERR_CONTEXT_CANCELED, message, params...)
}
func NewError(message string, params ...interface{}) error {
	return New(ERR_ERROR, message, params...)
}
func NewBlockNotFoundError(message string, params ...interface{}) error {
	return New(ERR_BLOCK_NOT_FOUND, message, params...)
}
func NewBlockInvalidError(message string, params ...interface{}) error {
	return New(ERR_BLOCK_INVALID, message, params...)
}
func NewBlockExistsError(message string, params ...interface{}) error {
	return New(ERR_BLOCK_EXISTS, message, params...)
}
func NewMissingLocalBlocksError(message string, params ...interface{}) error {
	return New(ERR_MISSING_LOCAL_BLOCKS, message, params...)
}
func NewCoinNotFoundError(message string, params ...interface{}) error {
	return New(ERR_COIN_NOT_FOUND, message, params...)
}
func NewCoinInvalidError(message string, params ...interface{}) error {
	return New(ERR_COIN_INVALID, message, params...)
}
func NewCoinConflictError(message string, params ...interface{}) error {
	return New(ERR_COIN_CONFLICT, message, params...)
}
func NewCoinExistsError(message string, params ...interface{}) error {
	return New(ERR_COIN_EXISTS, message, params...)
}
func NewServiceUnavailableError(message string, params ...interface{}) error {
	return New(ERR_SERVICE_UNAVAILABLE, message, params...)
}
func NewServiceNotStartedError(message string, params ...interface{}) error {
	return New(ERR_SERVICE_NOT_STARTED, message, params...)
}
func NewServiceError(message string, params ...interface{}) error {
	return New(ERR_SERVICE_ERROR, message, params...)
}
func NewStorageUnavailableError(message string, params ...interface{}) error {
	return New(ERR_STORAGE_UNAVAILABLE, message, params...)
}
func NewStorageNotStartedError(message string, params ...interface{}) error {
	return New(ERR_STORAGE_NOT_STARTED, message, params...)
}
func NewStorageError(message string, params ...interface{}) error {
	return New(ERR_STORAGE_ERROR, message, params...)
}
func NewNetworkError(message string, params ...interface{}) error {
	return New(ERR_NETWORK_ERROR, message, params...)
}
func NewNetworkTimeoutError(message string, params ...interface{}) error {
	return New(ERR_NETWORK_TIMEOUT, message, params...)
}
func NewNetworkConnectionRefusedError(message string, params ...interface{}) error {
	return New(ERR_NETWORK_CONNECTION_REFUSED, message, params...)
}
func NewNetworkInvalidResponseError(message string, params ...interface{}) error {
	return New(ERR_NETWORK_INVALID_RESPONSE, message, params...)
}
func NewNetworkPeerMaliciousError(message string, params ...interface{}) error {
	return New(ERR_NETWORK_PEER_MALICIOUS, message, params...)
}
func NewProofInvalidError(message string, params ...interface{}) error {
	return New(ERR_PROOF_INVALID, message, params...)
}
func NewInclusionProofFailedError(message string, params ...interface{}) error {
	return New(ERR_INCLUSION_PROOF_FAILED, message, params...)
}
func NewSubscriptionLimitError(message string, params ...interface{}) error {
	return New(ERR_SUBSCRIPTION_LIMIT, message, params...)
}
func NewSyncSessionTerminatedError(message string, params ...interface{}) error {
	return New(ERR_SYNC_SESSION_TERMINATED, message, params...)
}
