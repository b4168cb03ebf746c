// Package dispatcher orchestrates one settlement batch: fetch pending payout
// rows, validate, build and broadcast transfers, and write outcomes back.
package dispatcher

import (
	"context"
	"math/big"
	"time"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/tvm/cell"
	"golang.org/x/time/rate"

	"github.com/stablepay-hq/payrunner/pkg/circuitbreaker"
	"github.com/stablepay-hq/payrunner/pkg/faults"
	"github.com/stablepay-hq/payrunner/pkg/keymanager"
	"github.com/stablepay-hq/payrunner/pkg/logger"
	"github.com/stablepay-hq/payrunner/pkg/metrics"
	"github.com/stablepay-hq/payrunner/pkg/models"
	"github.com/stablepay-hq/payrunner/pkg/tonchain"
)

// LedgerStore is the subset of store operations the dispatcher performs:
// one filtered read and point updates keyed by row id.
type LedgerStore interface {
	FetchPendingPayouts(ctx context.Context, limit int) ([]models.PayoutIntent, error)
	UpdatePayout(ctx context.Context, id string, upd models.PayoutUpdate) error
}

// ChainClient covers the chain operations used during a run.
type ChainClient interface {
	ResolveJettonWallet(ctx context.Context, master, owner *address.Address) (*address.Address, error)
	Seqno(ctx context.Context, account *address.Address) (uint32, error)
	SendJettonTransfer(ctx context.Context, signer *keymanager.Signer, seqno uint32,
		jettonWallet *address.Address, attach tlb.Coins, body *cell.Cell) error
}

// Options configure a Dispatcher.
type Options struct {
	Store          LedgerStore
	Chain          ChainClient
	Signer         *keymanager.Signer
	Breaker        *circuitbreaker.CircuitBreaker
	Logger         logger.Logger
	JettonMaster   *address.Address
	AttachTON      tlb.Coins
	ForwardTON     *big.Int
	TokenDecimals  int
	BatchLimit     int
	PacingInterval time.Duration
}

// Dispatcher runs a single settlement batch. It is strictly sequential: the
// treasury sequence number is a global per-account counter, so there is never
// more than one outstanding broadcast. Do not run two instances against the
// same treasury.
type Dispatcher struct {
	store        LedgerStore
	chain        ChainClient
	signer       *keymanager.Signer
	breaker      *circuitbreaker.CircuitBreaker
	logger       logger.Logger
	jettonMaster *address.Address
	attach       tlb.Coins
	forward      *big.Int
	decimals     int
	batchLimit   int
	pacing       *rate.Limiter

	// seqno is held explicitly so tests can inject a start value and assert
	// the final one. It advances only on successful broadcasts.
	seqno uint32
}

// Report summarizes the outcome of one run.
type Report struct {
	Fetched            int
	Sent               int
	Failed             int
	Skipped            int
	StoreWriteFailures int
	FinalSeqno         uint32
}

// New creates a dispatcher from options.
func New(opts Options) *Dispatcher {
	log := opts.Logger
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	breaker := opts.Breaker
	if breaker == nil {
		breaker = circuitbreaker.NewCircuitBreaker(false, 1, time.Second, time.Second, log)
	}
	return &Dispatcher{
		store:        opts.Store,
		chain:        opts.Chain,
		signer:       opts.Signer,
		breaker:      breaker,
		logger:       log,
		jettonMaster: opts.JettonMaster,
		attach:       opts.AttachTON,
		forward:      opts.ForwardTON,
		decimals:     opts.TokenDecimals,
		batchLimit:   opts.BatchLimit,
		pacing:       rate.NewLimiter(rate.Every(opts.PacingInterval), 1),
	}
}

// Run executes one batch to completion. Row-level failures are recorded into
// the row and do not abort the run; only startup resolution and the batch
// read are fatal.
func (d *Dispatcher) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	defer func() {
		metrics.BatchDuration.Observe(time.Since(start).Seconds())
	}()

	var rep Report

	treasury := d.signer.Address()
	jettonWallet, err := d.chain.ResolveJettonWallet(ctx, d.jettonMaster, treasury)
	if err != nil {
		return rep, err
	}

	seqno, err := d.chain.Seqno(ctx, treasury)
	if err != nil {
		return rep, err
	}
	d.seqno = seqno
	rep.FinalSeqno = seqno
	metrics.WalletSeqno.Set(float64(seqno))
	d.logger.InfoWith(logger.Batch, "starting batch at seqno %d from treasury %s", seqno, treasury.String())

	rows, err := d.store.FetchPendingPayouts(ctx, d.batchLimit)
	if err != nil {
		// Nothing was dispatched yet; a failed batch read means there is
		// nothing to do.
		return rep, err
	}
	rep.Fetched = len(rows)
	metrics.PendingPayouts.Set(float64(len(rows)))

	for i := range rows {
		row := &rows[i]

		// The store query already filters, but a row that is not an outgoing
		// pending row must never be dispatched regardless of what came back.
		if row.Direction != models.DirectionOutgoing || row.Status != models.StatusPending {
			rep.Skipped++
			d.logger.DebugWith(logger.Batch, "skipping payout %s: direction=%s status=%s", row.ID, row.Direction, row.Status)
			continue
		}

		// Pace between rows; the limiter's first acquisition is free, so only
		// rows after the first wait.
		if err := d.pacing.Wait(ctx); err != nil {
			d.logger.NoticeWith(logger.Batch, "run cancelled after %d rows, remaining rows stay pending", rep.Sent+rep.Failed)
			break
		}

		d.processRow(ctx, jettonWallet, row, &rep)
	}

	rep.FinalSeqno = d.seqno
	d.logger.InfoWith(logger.Batch, "batch done: %d fetched, %d sent, %d failed, %d skipped, final seqno %d",
		rep.Fetched, rep.Sent, rep.Failed, rep.Skipped, rep.FinalSeqno)
	return rep, nil
}

// processRow drives one row through pending → sending → {sent, failed}.
func (d *Dispatcher) processRow(ctx context.Context, jettonWallet *address.Address, row *models.PayoutIntent, rep *Report) {
	dest, units, err := d.validateRow(row)
	if err != nil {
		// Invalid rows fail without consuming a sequence number.
		d.failRow(ctx, row, err, false, rep)
		return
	}

	// Pre-commit so a crash mid-send leaves an auditable trail rather than
	// silent loss.
	now := time.Now().UTC()
	sending := models.StatusSending
	from := d.signer.Address().String()
	upd := models.PayoutUpdate{Status: &sending, SentAt: &now, FromAddress: &from}
	if err := d.store.UpdatePayout(ctx, row.ID, upd); err != nil {
		rep.Failed++
		metrics.PayoutsFailed.WithLabelValues(faults.Store.String()).Inc()
		d.logger.ErrorWith(logger.Store, "payout %s: sending pre-commit failed, row left pending: %v", row.ID, err)
		return
	}

	body, err := tonchain.BuildTransferBody(tonchain.TransferParams{
		Amount:              units,
		Destination:         dest,
		ResponseDestination: d.signer.Address(),
		ForwardAmount:       d.forward,
	})
	if err != nil {
		d.failRow(ctx, row, err, false, rep)
		return
	}

	if d.breaker.IsOpen() {
		d.failRow(ctx, row, faults.Dispatchf("broadcast suspended: circuit breaker open"), true, rep)
		return
	}

	if err := d.chain.SendJettonTransfer(ctx, d.signer, d.seqno, jettonWallet, d.attach, body); err != nil {
		d.breaker.RecordFailure()
		d.failRow(ctx, row, err, true, rep)
		return
	}

	// The counter advances exactly once per accepted broadcast and is never
	// re-queried mid-batch.
	d.seqno++
	metrics.WalletSeqno.Set(float64(d.seqno))

	sent := models.StatusSent
	if err := d.store.UpdatePayout(ctx, row.ID, models.PayoutUpdate{Status: &sent}); err != nil {
		// The transfer is already on its way: the store now disagrees with the
		// chain and a re-run would double-pay. Operators must reconcile by hand.
		rep.StoreWriteFailures++
		metrics.StoreWriteFailures.Inc()
		d.logger.ErrorWith(logger.Store,
			"payout %s broadcast at seqno %d but the sent write failed, MANUAL RECONCILIATION REQUIRED: %v",
			row.ID, d.seqno-1, err)
	}
	rep.Sent++
	metrics.PayoutsSent.Inc()
	d.logger.InfoWith(logger.Batch, "payout %s sent: %s %s to %s (seqno %d)",
		row.ID, row.Amount, row.BeneficiaryRef, row.RecipientAddress, d.seqno-1)
}

// validateRow checks the recipient address and amount before anything touches
// the network or the sequence counter.
func (d *Dispatcher) validateRow(row *models.PayoutIntent) (*address.Address, *big.Int, error) {
	if row.RecipientAddress == "" {
		return nil, nil, faults.Validationf("Invalid address: recipient is empty")
	}
	dest, err := address.ParseAddr(row.RecipientAddress)
	if err != nil {
		return nil, nil, faults.Validationf("Invalid address %q: %v", row.RecipientAddress, err)
	}
	units, err := models.ScaleAmount(row.Amount, d.decimals)
	if err != nil {
		return nil, nil, err
	}
	return dest, units, nil
}

// failRow marks a row failed with the cause recorded. countRetry is set for
// failures past validation, which stay eligible for a future run.
func (d *Dispatcher) failRow(ctx context.Context, row *models.PayoutIntent, cause error, countRetry bool, rep *Report) {
	rep.Failed++

	reason := faults.ChainDispatch
	if kind, ok := faults.KindOf(cause); ok {
		reason = kind
	}
	metrics.PayoutsFailed.WithLabelValues(reason.String()).Inc()

	failed := models.StatusFailed
	msg := cause.Error()
	upd := models.PayoutUpdate{Status: &failed, ErrorMessage: &msg}
	if countRetry {
		retries := row.RetryCount + 1
		now := time.Now().UTC()
		upd.RetryCount = &retries
		upd.LastRetryAt = &now
	}
	if err := d.store.UpdatePayout(ctx, row.ID, upd); err != nil {
		rep.StoreWriteFailures++
		metrics.StoreWriteFailures.Inc()
		d.logger.ErrorWith(logger.Store, "payout %s: failed write did not stick: %v", row.ID, err)
	}

	d.logger.NoticeWith(logger.Batch, "payout %s failed: %v", row.ID, cause)
}
