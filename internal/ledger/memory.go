package ledger

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/gagliardetto/solana-go"
)

type balanceKey struct {
	asset solana.PublicKey
	owner solana.PublicKey
}

type allowanceKey struct {
	asset   solana.PublicKey
	owner   solana.PublicKey
	spender solana.PublicKey
}

// Memory is an in-process ledger. Transactions are serialized; each one stages its writes in
// an overlay that is merged on Commit and discarded on Rollback.
type Memory struct {
	txMu sync.Mutex

	mu         sync.RWMutex
	balances   map[balanceKey]*big.Int
	allowances map[allowanceKey]*big.Int
	resetOnly  map[solana.PublicKey]struct{}
	log        []Transfer
}

var (
	_ Ledger = (*Memory)(nil)
	_ Seeder = (*Memory)(nil)
)

func NewMemory() *Memory {
	return &Memory{
		balances:   make(map[balanceKey]*big.Int),
		allowances: make(map[allowanceKey]*big.Int),
		resetOnly:  make(map[solana.PublicKey]struct{}),
	}
}

// RequireApproveReset marks asset as one whose allowance must go through zero before it can
// change to another non-zero value.
func (m *Memory) RequireApproveReset(_ context.Context, asset solana.PublicKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetOnly[asset] = struct{}{}
	return nil
}

// Mint credits owner outside of any transaction. Used for genesis funding and tests.
func (m *Memory) Mint(_ context.Context, asset, owner solana.PublicKey, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := balanceKey{asset: asset, owner: owner}
	cur, ok := m.balances[k]
	if !ok {
		cur = new(big.Int)
	}
	m.balances[k] = new(big.Int).Add(cur, amount)
	return nil
}

func (m *Memory) Balance(_ context.Context, asset, owner solana.PublicKey) (*big.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balanceLocked(balanceKey{asset: asset, owner: owner}), nil
}

func (m *Memory) balanceLocked(k balanceKey) *big.Int {
	if v, ok := m.balances[k]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

// Transfers returns a copy of the committed transfer log.
func (m *Memory) Transfers() []Transfer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Transfer, len(m.log))
	copy(out, m.log)
	return out
}

func (m *Memory) Begin(ctx context.Context) (Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.txMu.Lock()
	return &memTx{
		parent:     m,
		balances:   make(map[balanceKey]*big.Int),
		allowances: make(map[allowanceKey]*big.Int),
	}, nil
}

type memTx struct {
	parent     *Memory
	balances   map[balanceKey]*big.Int
	allowances map[allowanceKey]*big.Int
	log        []Transfer
	done       bool
}

func (t *memTx) balance(k balanceKey) *big.Int {
	if v, ok := t.balances[k]; ok {
		return v
	}
	t.parent.mu.RLock()
	defer t.parent.mu.RUnlock()
	return t.parent.balanceLocked(k)
}

func (t *memTx) allowance(k allowanceKey) *big.Int {
	if v, ok := t.allowances[k]; ok {
		return v
	}
	t.parent.mu.RLock()
	defer t.parent.mu.RUnlock()
	if v, ok := t.parent.allowances[k]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

func (t *memTx) Balance(_ context.Context, asset, owner solana.PublicKey) (*big.Int, error) {
	if t.done {
		return nil, ErrTxDone
	}
	return new(big.Int).Set(t.balance(balanceKey{asset: asset, owner: owner})), nil
}

func (t *memTx) Allowance(_ context.Context, asset, owner, spender solana.PublicKey) (*big.Int, error) {
	if t.done {
		return nil, ErrTxDone
	}
	return new(big.Int).Set(t.allowance(allowanceKey{asset: asset, owner: owner, spender: spender})), nil
}

func (t *memTx) move(kind Kind, asset, from, to solana.PublicKey, amount *big.Int) error {
	fromKey := balanceKey{asset: asset, owner: from}
	bal := t.balance(fromKey)
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s holds %s of %s, needs %s", ErrInsufficientBalance, from, bal, asset, amount)
	}
	t.balances[fromKey] = new(big.Int).Sub(bal, amount)
	toKey := balanceKey{asset: asset, owner: to}
	t.balances[toKey] = new(big.Int).Add(t.balance(toKey), amount)
	t.log = append(t.log, Transfer{Kind: kind, Asset: asset, From: from, To: to, Amount: new(big.Int).Set(amount)})
	return nil
}

func (t *memTx) Transfer(_ context.Context, asset, from, to solana.PublicKey, amount *big.Int) error {
	if t.done {
		return ErrTxDone
	}
	if err := validAmount(amount); err != nil {
		return err
	}
	return t.move(KindTransfer, asset, from, to, amount)
}

func (t *memTx) TransferFrom(_ context.Context, asset, spender, from, to solana.PublicKey, amount *big.Int) error {
	if t.done {
		return ErrTxDone
	}
	if err := validAmount(amount); err != nil {
		return err
	}
	k := allowanceKey{asset: asset, owner: from, spender: spender}
	allowed := t.allowance(k)
	if allowed.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s allowed %s by %s, needs %s", ErrInsufficientAllowance, spender, allowed, from, amount)
	}
	if err := t.move(KindTransfer, asset, from, to, amount); err != nil {
		return err
	}
	t.allowances[k] = new(big.Int).Sub(allowed, amount)
	return nil
}

func (t *memTx) Approve(_ context.Context, asset, owner, spender solana.PublicKey, amount *big.Int) error {
	if t.done {
		return ErrTxDone
	}
	if err := validAmount(amount); err != nil {
		return err
	}
	k := allowanceKey{asset: asset, owner: owner, spender: spender}
	t.parent.mu.RLock()
	_, resetOnly := t.parent.resetOnly[asset]
	t.parent.mu.RUnlock()
	if resetOnly && amount.Sign() > 0 && t.allowance(k).Sign() > 0 {
		return ErrApproveNotReset
	}
	t.allowances[k] = new(big.Int).Set(amount)
	return nil
}

func (t *memTx) Wrap(_ context.Context, owner solana.PublicKey, amount *big.Int) error {
	if t.done {
		return ErrTxDone
	}
	if err := validAmount(amount); err != nil {
		return err
	}
	return t.convert(KindWrap, Native, Wrapped, owner, amount)
}

func (t *memTx) Unwrap(_ context.Context, owner solana.PublicKey, amount *big.Int) error {
	if t.done {
		return ErrTxDone
	}
	if err := validAmount(amount); err != nil {
		return err
	}
	return t.convert(KindUnwrap, Wrapped, Native, owner, amount)
}

func (t *memTx) convert(kind Kind, from, to, owner solana.PublicKey, amount *big.Int) error {
	fromKey := balanceKey{asset: from, owner: owner}
	bal := t.balance(fromKey)
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s holds %s of %s, needs %s", ErrInsufficientBalance, owner, bal, from, amount)
	}
	t.balances[fromKey] = new(big.Int).Sub(bal, amount)
	toKey := balanceKey{asset: to, owner: owner}
	t.balances[toKey] = new(big.Int).Add(t.balance(toKey), amount)
	t.log = append(t.log, Transfer{Kind: kind, Asset: from, From: owner, To: owner, Amount: new(big.Int).Set(amount)})
	return nil
}

func (t *memTx) Commit(ctx context.Context) error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	defer t.parent.txMu.Unlock()

	p := t.parent
	p.mu.Lock()
	defer p.mu.Unlock()
	for k, v := range t.balances {
		p.balances[k] = v
	}
	for k, v := range t.allowances {
		if v.Sign() == 0 {
			delete(p.allowances, k)
			continue
		}
		p.allowances[k] = v
	}
	p.log = append(p.log, t.log...)
	return nil
}

func (t *memTx) Rollback(context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.balances = nil
	t.allowances = nil
	t.log = nil
	t.parent.txMu.Unlock()
	return nil
}
