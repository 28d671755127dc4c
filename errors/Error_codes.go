package errors

import "fmt"

// ERR identifies the category of an Error. Codes are grouped in blocks of ten:
// generic, block, coin, service, storage, network and proof errors.
type ERR int32

const (
	ERR_UNKNOWN            ERR = 0
	ERR_INVALID_ARGUMENT   ERR = 1
	ERR_THRESHOLD_EXCEEDED ERR = 2
	ERR_NOT_FOUND          ERR = 3
	ERR_PROCESSING         ERR = 4
	ERR_CONFIGURATION      ERR = 5
	ERR_CONTEXT            ERR = 6
	ERR_CONTEXT_CANCELED   ERR = 7
	ERR_ERROR              ERR = 9

	ERR_BLOCK_NOT_FOUND      ERR = 10
	ERR_BLOCK_INVALID        ERR = 11
	ERR_BLOCK_EXISTS         ERR = 12
	ERR_MISSING_LOCAL_BLOCKS ERR = 13

	ERR_COIN_NOT_FOUND ERR = 20
	ERR_COIN_INVALID   ERR = 21
	ERR_COIN_CONFLICT  ERR = 22
	ERR_COIN_EXISTS    ERR = 23

	ERR_SERVICE_UNAVAILABLE ERR = 30
	ERR_SERVICE_NOT_STARTED ERR = 31
	ERR_SERVICE_ERROR       ERR = 32

	ERR_STORAGE_UNAVAILABLE ERR = 40
	ERR_STORAGE_NOT_STARTED ERR = 41
	ERR_STORAGE_ERROR       ERR = 42

	ERR_NETWORK_ERROR              ERR = 50
	ERR_NETWORK_TIMEOUT            ERR = 51
	ERR_NETWORK_CONNECTION_REFUSED ERR = 52
	ERR_NETWORK_INVALID_RESPONSE   ERR = 53
	ERR_NETWORK_PEER_MALICIOUS     ERR = 54

	ERR_PROOF_INVALID           ERR = 60
	ERR_INCLUSION_PROOF_FAILED  ERR = 61
	ERR_SUBSCRIPTION_LIMIT      ERR = 62
	ERR_SYNC_SESSION_TERMINATED ERR = 63
)

var ERR_name = map[int32]string{
	0:  "UNKNOWN",
	1:  "INVALID_ARGUMENT",
	2:  "THRESHOLD_EXCEEDED",
	3:  "NOT_FOUND",
	4:  "PROCESSING",
	5:  "CONFIGURATION",
	6:  "CONTEXT",
	7:  "CONTEXT_CANCELED",
	9:  "ERROR",
	10: "BLOCK_NOT_FOUND",
	11: "BLOCK_INVALID",
	12: "BLOCK_EXISTS",
	13: "MISSING_LOCAL_BLOCKS",
	20: "COIN_NOT_FOUND",
	21: "COIN_INVALID",
	22: "COIN_CONFLICT",
	23: "COIN_EXISTS",
	30: "SERVICE_UNAVAILABLE",
	31: "SERVICE_NOT_STARTED",
	32: "SERVICE_ERROR",
	40: "STORAGE_UNAVAILABLE",
	41: "STORAGE_NOT_STARTED",
	42: "STORAGE_ERROR",
	50: "NETWORK_ERROR",
	51: "NETWORK_TIMEOUT",
	52: "NETWORK_CONNECTION_REFUSED",
	53: "NETWORK_INVALID_RESPONSE",
	54: "NETWORK_PEER_MALICIOUS",
	60: "PROOF_INVALID",
	61: "INCLUSION_PROOF_FAILED",
	62: "SUBSCRIPTION_LIMIT",
	63: "SYNC_SESSION_TERMINATED",
}

var ERR_value = map[string]int32{
	"UNKNOWN":                    0,
	"INVALID_ARGUMENT":           1,
	"THRESHOLD_EXCEEDED":         2,
	"NOT_FOUND":                  3,
	"PROCESSING":                 4,
	"CONFIGURATION":              5,
	"CONTEXT":                    6,
	"CONTEXT_CANCELED":           7,
	"ERROR":                      9,
	"BLOCK_NOT_FOUND":            10,
	"BLOCK_INVALID":              11,
	"BLOCK_EXISTS":               12,
	"MISSING_LOCAL_BLOCKS":       13,
	"COIN_NOT_FOUND":             20,
	"COIN_INVALID":               21,
	"COIN_CONFLICT":              22,
	"COIN_EXISTS":                23,
	"SERVICE_UNAVAILABLE":        30,
	"SERVICE_NOT_STARTED":        31,
	"SERVICE_ERROR":              32,
	"STORAGE_UNAVAILABLE":        40,
	"STORAGE_NOT_STARTED":        41,
	"STORAGE_ERROR":              42,
	"NETWORK_ERROR":              50,
	"NETWORK_TIMEOUT":            51,
	"NETWORK_CONNECTION_REFUSED": 52,
	"NETWORK_INVALID_RESPONSE":   53,
	"NETWORK_PEER_MALICIOUS":     54,
	"PROOF_INVALID":              60,
	"INCLUSION_PROOF_FAILED":     61,
	"SUBSCRIPTION_LIMIT":         62,
	"SYNC_SESSION_TERMINATED":    63,
}

func (x ERR) String() string {
	if name, ok := ERR_name[int32(x)]; ok {
		return name
	}

	return fmt.Sprintf("ERR(%d)", int32(x))
}
