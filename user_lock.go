package resflow

// LockedForAllUsers is stored as the holder when no single user owns the lock.
const LockedForAllUsers = "__locked_for_all_users__"

// UserLock is an advisory single-owner lock. An empty holder means unlocked.
// It performs no I/O: callers persist the holder inside their own transaction.
type UserLock struct {
	Holder string `json:"holder,omitempty"`
}

func (l *UserLock) LockHolder() string {
	return l.Holder
}

func (l *UserLock) IsUserLocked() bool {
	return l.Holder != ""
}

func (l *UserLock) IsLockedForAllUsers() bool {
	return l.Holder == LockedForAllUsers
}

// AcquireUserLock locks for actor, or for all users when actor is nil.
// Re-acquiring a lock already held with the same scope succeeds.
func (l *UserLock) AcquireUserLock(actor *Actor) bool {
	want := LockedForAllUsers
	if actor != nil {
		want = actor.Identity
	}
	if want == "" {
		return false
	}

	if !l.IsUserLocked() {
		l.Holder = want

		return true
	}

	return l.Holder == want
}

func (l *UserLock) ReleaseUserLock(actor Actor) bool {
	if !l.IsUserLocked() {
		return true
	}

	if actor.CanOverride {
		l.Holder = ""

		return true
	}

	if l.IsLockedForAllUsers() {
		return false
	}

	if actor.Identity != "" && l.Holder == actor.Identity {
		l.Holder = ""

		return true
	}

	return false
}

// IsLockedFor reports whether actor is locked out. Override-capable actors never are.
func (l *UserLock) IsLockedFor(actor Actor) bool {
	if actor.CanOverride {
		return false
	}

	return l.IsUserLocked() && l.Holder != actor.Identity
}
