package dispatcher

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"github.com/stablepay-hq/payrunner/pkg/circuitbreaker"
	"github.com/stablepay-hq/payrunner/pkg/faults"
	"github.com/stablepay-hq/payrunner/pkg/keymanager"
	"github.com/stablepay-hq/payrunner/pkg/models"
)

type mockStore struct {
	rows     []models.PayoutIntent
	fetchErr error

	updates       map[string][]models.PayoutUpdate
	failAllFor    map[string]bool
	failSentWrite bool
}

func newMockStore(rows ...models.PayoutIntent) *mockStore {
	return &mockStore{
		rows:       rows,
		updates:    make(map[string][]models.PayoutUpdate),
		failAllFor: make(map[string]bool),
	}
}

func (m *mockStore) FetchPendingPayouts(_ context.Context, _ int) ([]models.PayoutIntent, error) {
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	return m.rows, nil
}

func (m *mockStore) UpdatePayout(_ context.Context, id string, upd models.PayoutUpdate) error {
	if m.failAllFor[id] {
		return faults.Storef("simulated write failure for %s", id)
	}
	if m.failSentWrite && upd.Status != nil && *upd.Status == models.StatusSent {
		return faults.Storef("simulated sent write failure for %s", id)
	}
	m.updates[id] = append(m.updates[id], upd)
	return nil
}

func (m *mockStore) lastUpdate(t *testing.T, id string) models.PayoutUpdate {
	t.Helper()
	require.NotEmpty(t, m.updates[id], "no updates recorded for row %s", id)
	return m.updates[id][len(m.updates[id])-1]
}

type mockChain struct {
	jettonWallet *address.Address
	startSeqno   uint32
	seqnoErr     error

	broadcasts []uint32
	failOnCall int // 1-based broadcast index that fails, 0 means never
	failErr    error
}

func (m *mockChain) ResolveJettonWallet(_ context.Context, _, _ *address.Address) (*address.Address, error) {
	return m.jettonWallet, nil
}

func (m *mockChain) Seqno(_ context.Context, _ *address.Address) (uint32, error) {
	if m.seqnoErr != nil {
		return 0, m.seqnoErr
	}
	return m.startSeqno, nil
}

func (m *mockChain) SendJettonTransfer(_ context.Context, _ *keymanager.Signer, seqno uint32,
	_ *address.Address, _ tlb.Coins, _ *cell.Cell) error {
	m.broadcasts = append(m.broadcasts, seqno)
	if m.failOnCall == len(m.broadcasts) {
		if m.failErr != nil {
			return m.failErr
		}
		return faults.Dispatchf("simulated broadcast failure")
	}
	return nil
}

func testAddr(fill byte) *address.Address {
	data := make([]byte, 32)
	for i := range data {
		data[i] = fill
	}
	return address.NewAddress(0, 0, data)
}

func testSigner(t *testing.T) *keymanager.Signer {
	t.Helper()
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i + 1)
	}
	signer, err := keymanager.FromSeed(seed)
	require.NoError(t, err)
	return signer
}

func pendingRow(id, amount, recipient string) models.PayoutIntent {
	return models.PayoutIntent{
		ID:               id,
		Direction:        models.DirectionOutgoing,
		Status:           models.StatusPending,
		BeneficiaryRef:   "ref-" + id,
		Amount:           amount,
		RecipientAddress: recipient,
		CreatedAt:        time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
	}
}

func newTestDispatcher(t *testing.T, store *mockStore, chain *mockChain, breaker *circuitbreaker.CircuitBreaker) *Dispatcher {
	t.Helper()
	return New(Options{
		Store:          store,
		Chain:          chain,
		Signer:         testSigner(t),
		Breaker:        breaker,
		JettonMaster:   testAddr(0x0a),
		AttachTON:      tlb.MustFromTON("0.05"),
		ForwardTON:     big.NewInt(1),
		TokenDecimals:  6,
		BatchLimit:     50,
		PacingInterval: time.Millisecond,
	})
}

func TestRunAllRowsValid(t *testing.T) {
	recipient := testAddr(0x11).String()
	store := newMockStore(
		pendingRow("p-1", "10.5", recipient),
		pendingRow("p-2", "0.000001", recipient),
		pendingRow("p-3", "1000.0", recipient),
	)
	chain := &mockChain{jettonWallet: testAddr(0x0b), startSeqno: 7}

	rep, err := newTestDispatcher(t, store, chain, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, rep.Fetched)
	assert.Equal(t, 3, rep.Sent)
	assert.Equal(t, 0, rep.Failed)
	assert.Equal(t, uint32(10), rep.FinalSeqno)
	assert.Equal(t, []uint32{7, 8, 9}, chain.broadcasts, "each broadcast must consume exactly one seqno, in order")

	for _, id := range []string{"p-1", "p-2", "p-3"} {
		updates := store.updates[id]
		require.Len(t, updates, 2, "row %s should get a sending pre-commit and a sent write", id)

		assert.Equal(t, models.StatusSending, *updates[0].Status)
		assert.NotNil(t, updates[0].SentAt)
		assert.NotNil(t, updates[0].FromAddress)

		assert.Equal(t, models.StatusSent, *updates[1].Status)
	}
}

func TestRunInvalidAddressFailsWithoutBroadcast(t *testing.T) {
	store := newMockStore(pendingRow("p-1", "10.5", "not-a-valid-address"))
	chain := &mockChain{jettonWallet: testAddr(0x0b), startSeqno: 7}

	rep, err := newTestDispatcher(t, store, chain, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, 0, rep.Sent)
	assert.Equal(t, uint32(7), rep.FinalSeqno, "invalid rows must not consume a seqno")
	assert.Empty(t, chain.broadcasts)

	upd := store.lastUpdate(t, "p-1")
	assert.Equal(t, models.StatusFailed, *upd.Status)
	assert.Contains(t, *upd.ErrorMessage, "Invalid address")
	assert.Nil(t, upd.RetryCount, "validation failures do not count as retries")
}

func TestRunZeroAmountFailsWithoutBroadcast(t *testing.T) {
	recipient := testAddr(0x11).String()
	store := newMockStore(pendingRow("p-1", "0", recipient))
	chain := &mockChain{jettonWallet: testAddr(0x0b), startSeqno: 3}

	rep, err := newTestDispatcher(t, store, chain, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Failed)
	assert.Empty(t, chain.broadcasts)

	upd := store.lastUpdate(t, "p-1")
	assert.Equal(t, models.StatusFailed, *upd.Status)
	assert.Contains(t, *upd.ErrorMessage, "Zero amount")
}

func TestRunBroadcastFailureMidBatch(t *testing.T) {
	recipient := testAddr(0x11).String()
	store := newMockStore(
		pendingRow("p-1", "10.5", recipient),
		pendingRow("p-2", "20.0", recipient),
		pendingRow("p-3", "30.0", recipient),
	)
	chain := &mockChain{jettonWallet: testAddr(0x0b), startSeqno: 7, failOnCall: 2}

	rep, err := newTestDispatcher(t, store, chain, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, rep.Sent)
	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, uint32(9), rep.FinalSeqno, "only accepted broadcasts advance the counter")
	assert.Equal(t, []uint32{7, 8, 8}, chain.broadcasts, "the failed seqno is reused by the next row")

	assert.Equal(t, models.StatusSent, *store.lastUpdate(t, "p-1").Status)
	assert.Equal(t, models.StatusSent, *store.lastUpdate(t, "p-3").Status)

	upd := store.lastUpdate(t, "p-2")
	assert.Equal(t, models.StatusFailed, *upd.Status)
	require.NotNil(t, upd.RetryCount)
	assert.Equal(t, 1, *upd.RetryCount)
	assert.NotNil(t, upd.LastRetryAt)
}

func TestRunEmptyBatch(t *testing.T) {
	store := newMockStore()
	chain := &mockChain{jettonWallet: testAddr(0x0b), startSeqno: 5}

	rep, err := newTestDispatcher(t, store, chain, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, rep.Fetched)
	assert.Equal(t, 0, rep.Sent)
	assert.Equal(t, uint32(5), rep.FinalSeqno)
	assert.Empty(t, chain.broadcasts)
}

func TestRunSkipsRowsOutsideTheFilter(t *testing.T) {
	recipient := testAddr(0x11).String()

	sent := pendingRow("p-1", "10.5", recipient)
	sent.Status = models.StatusSent
	failed := pendingRow("p-2", "10.5", recipient)
	failed.Status = models.StatusFailed
	incoming := pendingRow("p-3", "10.5", recipient)
	incoming.Direction = models.DirectionIncoming

	store := newMockStore(sent, failed, incoming)
	chain := &mockChain{jettonWallet: testAddr(0x0b), startSeqno: 5}

	rep, err := newTestDispatcher(t, store, chain, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, rep.Skipped)
	assert.Empty(t, chain.broadcasts)
	assert.Empty(t, store.updates, "rows outside the dispatch filter are never written")
}

func TestRunFetchErrorIsFatal(t *testing.T) {
	store := newMockStore()
	store.fetchErr = faults.Storef("store unreachable")
	chain := &mockChain{jettonWallet: testAddr(0x0b), startSeqno: 5}

	_, err := newTestDispatcher(t, store, chain, nil).Run(context.Background())
	require.Error(t, err)
	assert.True(t, faults.IsKind(err, faults.Store))
	assert.Empty(t, chain.broadcasts)
}

func TestRunSeqnoErrorIsFatal(t *testing.T) {
	store := newMockStore(pendingRow("p-1", "10.5", testAddr(0x11).String()))
	chain := &mockChain{jettonWallet: testAddr(0x0b), seqnoErr: faults.Dispatchf("account not initialized")}

	_, err := newTestDispatcher(t, store, chain, nil).Run(context.Background())
	require.Error(t, err)
	assert.True(t, faults.IsKind(err, faults.ChainDispatch))
	assert.Empty(t, chain.broadcasts)
}

func TestRunCircuitBreakerFailsFast(t *testing.T) {
	recipient := testAddr(0x11).String()
	store := newMockStore(
		pendingRow("p-1", "10.5", recipient),
		pendingRow("p-2", "20.0", recipient),
		pendingRow("p-3", "30.0", recipient),
	)
	chain := &mockChain{jettonWallet: testAddr(0x0b), startSeqno: 7, failOnCall: 1}
	breaker := circuitbreaker.NewCircuitBreaker(true, 1, time.Minute, time.Minute, nil)

	rep, err := newTestDispatcher(t, store, chain, breaker).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, rep.Failed)
	assert.Len(t, chain.broadcasts, 1, "after the breaker opens no further broadcasts are attempted")

	for _, id := range []string{"p-2", "p-3"} {
		upd := store.lastUpdate(t, id)
		assert.Equal(t, models.StatusFailed, *upd.Status)
		assert.Contains(t, *upd.ErrorMessage, "circuit breaker open")
		require.NotNil(t, upd.RetryCount)
		assert.Equal(t, 1, *upd.RetryCount)
	}
}

func TestRunSentWriteFailureIsCountedNotFatal(t *testing.T) {
	recipient := testAddr(0x11).String()
	store := newMockStore(pendingRow("p-1", "10.5", recipient))
	store.failSentWrite = true
	chain := &mockChain{jettonWallet: testAddr(0x0b), startSeqno: 7}

	rep, err := newTestDispatcher(t, store, chain, nil).Run(context.Background())
	require.NoError(t, err)

	// The broadcast went out, so the row counts as sent even though the store
	// now disagrees with the chain.
	assert.Equal(t, 1, rep.Sent)
	assert.Equal(t, 1, rep.StoreWriteFailures)
	assert.Equal(t, uint32(8), rep.FinalSeqno)
}

func TestRunPreCommitFailureLeavesRowAlone(t *testing.T) {
	recipient := testAddr(0x11).String()
	store := newMockStore(pendingRow("p-1", "10.5", recipient))
	store.failAllFor["p-1"] = true
	chain := &mockChain{jettonWallet: testAddr(0x0b), startSeqno: 7}

	rep, err := newTestDispatcher(t, store, chain, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Failed)
	assert.Empty(t, chain.broadcasts, "a row that cannot be pre-committed must not be broadcast")
	assert.Equal(t, uint32(7), rep.FinalSeqno)
}

func TestRunCancelledContextStopsBetweenRows(t *testing.T) {
	recipient := testAddr(0x11).String()
	store := newMockStore(
		pendingRow("p-1", "10.5", recipient),
		pendingRow("p-2", "20.0", recipient),
	)
	chain := &mockChain{jettonWallet: testAddr(0x0b), startSeqno: 7}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep, err := newTestDispatcher(t, store, chain, nil).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 0, rep.Sent)
	assert.Empty(t, chain.broadcasts)
	assert.Empty(t, store.updates, "unprocessed rows stay pending")
}
