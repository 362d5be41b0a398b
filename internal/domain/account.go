package domain

// AccountRole describes what a monitored account represents on the ledger.
type AccountRole string

const (
	// RoleWallet marks a plain holding account tracked for token transfers.
	RoleWallet AccountRole = "wallet"

	// RolePool marks an AMM pool account tracked for state snapshots
	// in addition to transfers.
	RolePool AccountRole = "pool"
)

// MonitoredAccount is a ledger address under collection. Identity is
// immutable; accounts are configured externally and never discovered
// at runtime.
type MonitoredAccount struct {
	Address string      // classic address, e.g. rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh
	Role    AccountRole // wallet or pool
	Name    string      // optional human-readable label, e.g. token symbol
}

// IsPool reports whether the account is an AMM pool.
func (a MonitoredAccount) IsPool() bool {
	return a.Role == RolePool
}
