package authcore

import "sync/atomic"

// Metrics counts engine operations. All counters are monotonic and safe for
// concurrent use; a nil *Metrics records nothing.
type Metrics struct {
	logins         atomic.Uint64
	loginFailures  atomic.Uint64
	lockouts       atomic.Uint64
	twoFactorFails atomic.Uint64
	refreshes      atomic.Uint64
	refreshReuses  atomic.Uint64
	logouts        atomic.Uint64
	verifications  atomic.Uint64
	passwordResets atomic.Uint64
	hashUpgrades   atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	Logins         uint64
	LoginFailures  uint64
	Lockouts       uint64
	TwoFactorFails uint64
	Refreshes      uint64
	RefreshReuses  uint64
	Logouts        uint64
	Verifications  uint64
	PasswordResets uint64
	HashUpgrades   uint64
}

func (m *Metrics) incLogin() {
	if m != nil {
		m.logins.Add(1)
	}
}

func (m *Metrics) incLoginFailure() {
	if m != nil {
		m.loginFailures.Add(1)
	}
}

func (m *Metrics) incLockout() {
	if m != nil {
		m.lockouts.Add(1)
	}
}

func (m *Metrics) incTwoFactorFail() {
	if m != nil {
		m.twoFactorFails.Add(1)
	}
}

func (m *Metrics) incRefresh() {
	if m != nil {
		m.refreshes.Add(1)
	}
}

func (m *Metrics) incRefreshReuse() {
	if m != nil {
		m.refreshReuses.Add(1)
	}
}

func (m *Metrics) incLogout() {
	if m != nil {
		m.logouts.Add(1)
	}
}

func (m *Metrics) incVerification() {
	if m != nil {
		m.verifications.Add(1)
	}
}

func (m *Metrics) incPasswordReset() {
	if m != nil {
		m.passwordResets.Add(1)
	}
}

func (m *Metrics) incHashUpgrade() {
	if m != nil {
		m.hashUpgrades.Add(1)
	}
}

// Snapshot copies the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	return MetricsSnapshot{
		Logins:         m.logins.Load(),
		LoginFailures:  m.loginFailures.Load(),
		Lockouts:       m.lockouts.Load(),
		TwoFactorFails: m.twoFactorFails.Load(),
		Refreshes:      m.refreshes.Load(),
		RefreshReuses:  m.refreshReuses.Load(),
		Logouts:        m.logouts.Load(),
		Verifications:  m.verifications.Load(),
		PasswordResets: m.passwordResets.Load(),
		HashUpgrades:   m.hashUpgrades.Load(),
	}
}
