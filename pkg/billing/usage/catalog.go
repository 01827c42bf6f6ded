package usage

// DefaultComputeUnits is the CU cost charged for any RPC method not present
// in methodCosts below.
const DefaultComputeUnits int64 = 10

// methodCosts maps an RPC method name to its compute-unit cost. The ladder
// mirrors the Alchemy-style per-method pricing this catalog was modeled on:
// cheap reads cost little, logs/trace-heavy calls and broadcasts cost more.
var methodCosts = map[string]int64{
	"eth_call":                  26,
	"eth_getBalance":            5,
	"eth_getCode":               26,
	"eth_getStorageAt":          17,
	"eth_getTransactionCount":   26,
	"eth_getTransactionReceipt": 15,
	"eth_getTransactionByHash":  15,
	"eth_getBlockByNumber":      16,
	"eth_getBlockByHash":        16,
	"eth_getLogs":               75,
	"eth_sendRawTransaction":    250,
	"eth_estimateGas":           87,
	"eth_blockNumber":           10,
	"eth_chainId":               0,
	"eth_gasPrice":              19,
	"eth_maxPriorityFeePerGas":  19,
	"net_version":               10,
	"net_listening":             10,
	"web3_clientVersion":        10,
}

// computeUnitsFor resolves the CU cost for a single method, falling back to
// DefaultComputeUnits for anything not in the catalog.
func computeUnitsFor(method string) int64 {
	if cu, ok := methodCosts[method]; ok {
		return cu
	}
	return DefaultComputeUnits
}

// BulkComputeUnits sums the per-method cost across a batched call.
func BulkComputeUnits(methods []string) int64 {
	var total int64
	for _, m := range methods {
		total += computeUnitsFor(m)
	}
	return total
}
