package tonchain

import (
	"math/big"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"github.com/stablepay-hq/payrunner/pkg/faults"
)

// jettonTransferOp is the TEP-74 transfer operation code.
const jettonTransferOp = 0x0f8a7ea5

// TransferParams describe a single fungible-token transfer instruction.
type TransferParams struct {
	// Amount is the token amount in smallest units.
	Amount *big.Int
	// Destination is the receiving party's wallet address.
	Destination *address.Address
	// ResponseDestination receives excess gas; always the treasury.
	ResponseDestination *address.Address
	// ForwardAmount is the forward-gas attached for the receiving contract,
	// in nanotons. Nil means zero.
	ForwardAmount *big.Int
}

// BuildTransferBody constructs the binary transfer instruction for a jetton
// wallet. It is pure and deterministic: identical inputs produce byte-identical
// cells. The query id is fixed to zero for that reason.
func BuildTransferBody(p TransferParams) (*cell.Cell, error) {
	if p.Amount == nil || p.Amount.Sign() <= 0 {
		return nil, faults.Validationf("transfer amount must be positive")
	}
	if p.Destination == nil {
		return nil, faults.Validationf("transfer destination is required")
	}
	if p.ResponseDestination == nil {
		return nil, faults.Validationf("transfer response destination is required")
	}
	forward := p.ForwardAmount
	if forward == nil {
		forward = big.NewInt(0)
	}

	body := cell.BeginCell().
		MustStoreUInt(jettonTransferOp, 32).
		MustStoreUInt(0, 64). // query id, fixed for determinism
		MustStoreBigCoins(p.Amount).
		MustStoreAddr(p.Destination).
		MustStoreAddr(p.ResponseDestination).
		MustStoreBoolBit(false). // no custom payload
		MustStoreBigCoins(forward).
		MustStoreBoolBit(false). // no forward payload
		EndCell()
	return body, nil
}
