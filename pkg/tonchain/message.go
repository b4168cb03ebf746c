package tonchain

import (
	"time"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton/wallet"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"github.com/stablepay-hq/payrunner/pkg/faults"
	"github.com/stablepay-hq/payrunner/pkg/keymanager"
)

const (
	// walletOpTransfer is the wallet v4 external op for plain message sends.
	walletOpTransfer = 0

	// Send mode: pay fees separately from the message value and ignore
	// action errors so a bounced transfer does not wedge the wallet seqno.
	sendModePayFeesSeparately = 1
	sendModeIgnoreErrors      = 2
)

// BuildExternalMessage wraps a transfer payload into a signed wallet v4
// external message carrying the given sequence number. The envelope sends
// attach nanotons of native gas to dest along with the payload.
func BuildExternalMessage(signer *keymanager.Signer, seqno uint32, validUntil time.Time,
	dest *address.Address, attach tlb.Coins, payload *cell.Cell) (*tlb.ExternalMessage, error) {
	if signer == nil {
		return nil, faults.Configurationf("signer is required")
	}
	if dest == nil {
		return nil, faults.Validationf("destination is required")
	}
	if payload == nil {
		return nil, faults.Validationf("payload is required")
	}

	// int_msg_info$0 ihr_disabled:1 bounce:1 bounced:0 src:addr_none
	internal := cell.BeginCell().
		MustStoreUInt(0b011000, 6).
		MustStoreAddr(dest).
		MustStoreBigCoins(attach.Nano()).
		MustStoreUInt(0, 1+4+4+64+32). // no extra currencies, fees, lt, unixtime
		MustStoreBoolBit(false).       // no state init
		MustStoreBoolBit(true).        // body stored as reference
		MustStoreRef(payload).
		EndCell()

	toSign := cell.BeginCell().
		MustStoreUInt(uint64(wallet.DefaultSubwallet), 32).
		MustStoreUInt(uint64(validUntil.Unix()), 32).
		MustStoreUInt(uint64(seqno), 32).
		MustStoreUInt(walletOpTransfer, 8).
		MustStoreUInt(uint64(sendModePayFeesSeparately|sendModeIgnoreErrors), 8).
		MustStoreRef(internal).
		EndCell()

	signature := signer.Sign(toSign.Hash())
	body := cell.BeginCell().
		MustStoreSlice(signature, 512).
		MustStoreBuilder(toSign.ToBuilder()).
		EndCell()

	return &tlb.ExternalMessage{
		DstAddr: signer.Address(),
		Body:    body,
	}, nil
}
