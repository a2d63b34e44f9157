package cli

import (
	"sync"

	"github.com/connvault/connvault/internal/config"
	"github.com/connvault/connvault/internal/secret"
)

// BackendProvider lazily builds and caches the secret manager and the
// verification ledger so commands that never touch backends (config,
// version) don't pay for probing them.
type BackendProvider struct {
	cfg     *config.Config
	globals *Globals

	managerOnce sync.Once
	manager     *secret.Manager

	ledgerOnce sync.Once
	ledger     *secret.VerificationManager
	store      *secret.VerificationStore
	ledgerErr  error
}

// NewBackendProvider creates a BackendProvider with the given config.
func NewBackendProvider(cfg *config.Config, globals *Globals) *BackendProvider {
	return &BackendProvider{cfg: cfg, globals: globals}
}

// Manager returns the configured secret manager, building it on first call.
func (bp *BackendProvider) Manager() *secret.Manager {
	bp.managerOnce.Do(func() {
		opts := secret.ChainOptions{
			BackendOrder:       bp.cfg.Backends,
			CacheEnabled:       !bp.cfg.CacheDisabled && !bp.globals.NoCache,
			BitwardenServerURL: bp.cfg.BitwardenServer,
			OnePasswordVault:   bp.cfg.OnePasswordVault,
			OnePasswordAccount: bp.cfg.OnePasswordAccount,
			PassStoreDir:       bp.cfg.PassStoreDir,
			PassboltServer:     bp.cfg.PassboltServer,
		}
		bp.manager = secret.BuildChain(opts)
	})
	return bp.manager
}

// Bitwarden returns the Bitwarden backend from the chain, if configured.
func (bp *BackendProvider) Bitwarden() (*secret.BitwardenBackend, bool) {
	for _, b := range bp.Manager().Backends() {
		if bw, ok := b.(*secret.BitwardenBackend); ok {
			return bw, true
		}
	}
	return nil, false
}

// Ledger returns the persisted verification ledger, loading it on first
// call.
func (bp *BackendProvider) Ledger() (*secret.VerificationManager, *secret.VerificationStore, error) {
	bp.ledgerOnce.Do(func() {
		store, err := secret.NewVerificationStore()
		if err != nil {
			bp.ledgerErr = err
			return
		}
		ledger := secret.NewVerificationManager()
		if err := store.Load(ledger); err != nil {
			bp.ledgerErr = err
			return
		}
		bp.store = store
		bp.ledger = ledger
	})
	return bp.ledger, bp.store, bp.ledgerErr
}
