package storage

import (
	"context"
	"sync"
)

// Memory is an in-process Store used by tests. A transaction takes the
// store-wide lock and mutates a staged copy, so concurrent requests
// serialize the same way short row transactions do in Postgres.
type Memory struct {
	mu   sync.Mutex
	data memData

	// PersistentSaveErr and PersistentDeleteErr, when non-nil, are returned
	// by the corresponding PersistentLoginRepo methods. Tests use them to
	// exercise the fatal persistence-failure paths.
	PersistentSaveErr   error
	PersistentDeleteErr error
}

type memData struct {
	accounts map[int64]Account
	pending  map[int64]PendingAccount
	resets   map[int64]PasswordReset
	logins   map[int64]PersistentLogin
	nextID   int64
}

// NewMemory returns an empty in-process store.
func NewMemory() *Memory {
	return &Memory{data: newMemData()}
}

func newMemData() memData {
	return memData{
		accounts: make(map[int64]Account),
		pending:  make(map[int64]PendingAccount),
		resets:   make(map[int64]PasswordReset),
		logins:   make(map[int64]PersistentLogin),
		nextID:   1,
	}
}

func (d *memData) clone() memData {
	out := memData{
		accounts: make(map[int64]Account, len(d.accounts)),
		pending:  make(map[int64]PendingAccount, len(d.pending)),
		resets:   make(map[int64]PasswordReset, len(d.resets)),
		logins:   make(map[int64]PersistentLogin, len(d.logins)),
		nextID:   d.nextID,
	}
	for id, a := range d.accounts {
		if a.TimeLastLogin != nil {
			t := *a.TimeLastLogin
			a.TimeLastLogin = &t
		}
		out.accounts[id] = a
	}
	for id, p := range d.pending {
		out.pending[id] = p
	}
	for id, r := range d.resets {
		out.resets[id] = r
	}
	for id, l := range d.logins {
		out.logins[id] = l
	}
	return out
}

func (d *memData) allocID() int64 {
	id := d.nextID
	d.nextID++
	return id
}

// Accounts describes the accounts operation and its observable behavior.
func (m *Memory) Accounts() AccountRepo {
	return &memAccountRepo{store: m, data: &m.data, locked: false}
}

// PendingAccounts describes the pendingaccounts operation and its observable behavior.
func (m *Memory) PendingAccounts() PendingAccountRepo {
	return &memPendingRepo{store: m, data: &m.data, locked: false}
}

// PasswordResets describes the passwordresets operation and its observable behavior.
func (m *Memory) PasswordResets() PasswordResetRepo {
	return &memResetRepo{store: m, data: &m.data, locked: false}
}

// PersistentLogins describes the persistentlogins operation and its observable behavior.
func (m *Memory) PersistentLogins() PersistentLoginRepo {
	return &memLoginRepo{store: m, data: &m.data, locked: false}
}

// Begin takes the store lock and stages a copy of the data; Commit swaps
// the staged copy in, Rollback discards it. Either releases the lock.
func (m *Memory) Begin(ctx context.Context) (Tx, error) {
	m.mu.Lock()
	tx := &memTx{store: m, staged: m.data.clone()}
	return tx, nil
}

type memTx struct {
	store  *Memory
	staged memData
	done   bool
}

func (t *memTx) Accounts() AccountRepo {
	return &memAccountRepo{store: t.store, data: &t.staged, locked: true}
}

func (t *memTx) PendingAccounts() PendingAccountRepo {
	return &memPendingRepo{store: t.store, data: &t.staged, locked: true}
}

func (t *memTx) PasswordResets() PasswordResetRepo {
	return &memResetRepo{store: t.store, data: &t.staged, locked: true}
}

func (t *memTx) PersistentLogins() PersistentLoginRepo {
	return &memLoginRepo{store: t.store, data: &t.staged, locked: true}
}

func (t *memTx) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	t.store.data = t.staged
	t.store.mu.Unlock()
	return nil
}

func (t *memTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.store.mu.Unlock()
	return nil
}

// lockIfNeeded locks the store for non-transactional access and returns the
// matching unlock. Transactional repositories already hold the lock.
func lockIfNeeded(store *Memory, locked bool) func() {
	if locked {
		return func() {}
	}
	store.mu.Lock()
	return store.mu.Unlock
}

type memAccountRepo struct {
	store  *Memory
	data   *memData
	locked bool
}

func (r *memAccountRepo) Create(ctx context.Context, account *Account) error {
	defer lockIfNeeded(r.store, r.locked)()

	account.ID = r.data.allocID()
	r.data.accounts[account.ID] = *account
	return nil
}

func (r *memAccountRepo) FindByID(ctx context.Context, id int64) (*Account, error) {
	defer lockIfNeeded(r.store, r.locked)()

	account, ok := r.data.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &account, nil
}

func (r *memAccountRepo) FindByEmail(ctx context.Context, email string) (*Account, error) {
	defer lockIfNeeded(r.store, r.locked)()

	for _, account := range r.data.accounts {
		if account.Email == email {
			out := account
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memAccountRepo) UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error {
	defer lockIfNeeded(r.store, r.locked)()

	account, ok := r.data.accounts[id]
	if !ok {
		return ErrNotFound
	}
	account.PasswordHash = passwordHash
	r.data.accounts[id] = account
	return nil
}

func (r *memAccountRepo) UpdateDisplayName(ctx context.Context, id int64, displayName string) error {
	defer lockIfNeeded(r.store, r.locked)()

	account, ok := r.data.accounts[id]
	if !ok {
		return ErrNotFound
	}
	account.DisplayName = displayName
	r.data.accounts[id] = account
	return nil
}

func (r *memAccountRepo) UpdateLastLogin(ctx context.Context, id int64, timeLastLogin int64) error {
	defer lockIfNeeded(r.store, r.locked)()

	account, ok := r.data.accounts[id]
	if !ok {
		return ErrNotFound
	}
	account.TimeLastLogin = &timeLastLogin
	r.data.accounts[id] = account
	return nil
}

func (r *memAccountRepo) Delete(ctx context.Context, id int64) error {
	defer lockIfNeeded(r.store, r.locked)()

	if _, ok := r.data.accounts[id]; !ok {
		return ErrNotFound
	}
	delete(r.data.accounts, id)
	return nil
}

type memPendingRepo struct {
	store  *Memory
	data   *memData
	locked bool
}

func (r *memPendingRepo) Create(ctx context.Context, pending *PendingAccount) error {
	defer lockIfNeeded(r.store, r.locked)()

	pending.ID = r.data.allocID()
	r.data.pending[pending.ID] = *pending
	return nil
}

func (r *memPendingRepo) FindByEmail(ctx context.Context, email string) (*PendingAccount, error) {
	defer lockIfNeeded(r.store, r.locked)()

	for _, pending := range r.data.pending {
		if pending.Email == email {
			out := pending
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memPendingRepo) FindByActivationCode(ctx context.Context, code string) (*PendingAccount, error) {
	defer lockIfNeeded(r.store, r.locked)()

	for _, pending := range r.data.pending {
		if pending.ActivationCode == code {
			out := pending
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memPendingRepo) Delete(ctx context.Context, id int64) error {
	defer lockIfNeeded(r.store, r.locked)()

	if _, ok := r.data.pending[id]; !ok {
		return ErrNotFound
	}
	delete(r.data.pending, id)
	return nil
}

type memResetRepo struct {
	store  *Memory
	data   *memData
	locked bool
}

func (r *memResetRepo) Save(ctx context.Context, reset *PasswordReset) error {
	defer lockIfNeeded(r.store, r.locked)()

	for id, existing := range r.data.resets {
		if existing.AccountID == reset.AccountID {
			existing.ResetCode = reset.ResetCode
			existing.TimeRequested = reset.TimeRequested
			r.data.resets[id] = existing
			reset.ID = id
			return nil
		}
	}

	reset.ID = r.data.allocID()
	r.data.resets[reset.ID] = *reset
	return nil
}

func (r *memResetRepo) FindByAccountID(ctx context.Context, accountID int64) (*PasswordReset, error) {
	defer lockIfNeeded(r.store, r.locked)()

	for _, reset := range r.data.resets {
		if reset.AccountID == accountID {
			out := reset
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memResetRepo) FindByResetCode(ctx context.Context, code string) (*PasswordReset, error) {
	defer lockIfNeeded(r.store, r.locked)()

	for _, reset := range r.data.resets {
		if reset.ResetCode == code {
			out := reset
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memResetRepo) Delete(ctx context.Context, id int64) error {
	defer lockIfNeeded(r.store, r.locked)()

	if _, ok := r.data.resets[id]; !ok {
		return ErrNotFound
	}
	delete(r.data.resets, id)
	return nil
}

func (r *memResetRepo) DeleteByAccountID(ctx context.Context, accountID int64) error {
	defer lockIfNeeded(r.store, r.locked)()

	for id, reset := range r.data.resets {
		if reset.AccountID == accountID {
			delete(r.data.resets, id)
		}
	}
	return nil
}

type memLoginRepo struct {
	store  *Memory
	data   *memData
	locked bool
}

func (r *memLoginRepo) Save(ctx context.Context, login *PersistentLogin) error {
	if r.store.PersistentSaveErr != nil {
		return r.store.PersistentSaveErr
	}
	defer lockIfNeeded(r.store, r.locked)()

	for id, existing := range r.data.logins {
		if existing.AccountID == login.AccountID && existing.ClientSignature == login.ClientSignature {
			existing.LookupKey = login.LookupKey
			existing.TokenHash = login.TokenHash
			existing.TimeExpires = login.TimeExpires
			r.data.logins[id] = existing
			login.ID = id
			return nil
		}
	}

	login.ID = r.data.allocID()
	r.data.logins[login.ID] = *login
	return nil
}

func (r *memLoginRepo) FindByLookupKey(ctx context.Context, lookupKey string) (*PersistentLogin, error) {
	defer lockIfNeeded(r.store, r.locked)()

	for _, login := range r.data.logins {
		if login.LookupKey == lookupKey {
			out := login
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memLoginRepo) FindByAccountAndSignature(ctx context.Context, accountID int64, signature string) (*PersistentLogin, error) {
	defer lockIfNeeded(r.store, r.locked)()

	for _, login := range r.data.logins {
		if login.AccountID == accountID && login.ClientSignature == signature {
			out := login
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memLoginRepo) Delete(ctx context.Context, id int64) error {
	if r.store.PersistentDeleteErr != nil {
		return r.store.PersistentDeleteErr
	}
	defer lockIfNeeded(r.store, r.locked)()

	if _, ok := r.data.logins[id]; !ok {
		return ErrNotFound
	}
	delete(r.data.logins, id)
	return nil
}

func (r *memLoginRepo) DeleteByAccountID(ctx context.Context, accountID int64) error {
	if r.store.PersistentDeleteErr != nil {
		return r.store.PersistentDeleteErr
	}
	defer lockIfNeeded(r.store, r.locked)()

	for id, login := range r.data.logins {
		if login.AccountID == accountID {
			delete(r.data.logins, id)
		}
	}
	return nil
}
