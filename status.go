package resflow

import (
	"fmt"
)

const RootStatusKey = "__ROOT__"

// StatusLedger holds independent status values keyed by name. The root key
// carries the overall status of the owning entity.
type StatusLedger map[string]Status

// Status returns the value stored under key, or def when the key is absent or empty.
func (l StatusLedger) Status(key string, def Status) Status {
	if key == "" {
		key = RootStatusKey
	}

	status, ok := l[key]
	if !ok || status == StatusEmpty {
		return def
	}

	return status
}

func (l StatusLedger) RootStatus() Status {
	return l.Status(RootStatusKey, StatusEmpty)
}

func (l *StatusLedger) SetStatus(key string, status Status) error {
	if !status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	if key == "" {
		key = RootStatusKey
	}

	if *l == nil {
		*l = make(StatusLedger)
	}
	(*l)[key] = status

	return nil
}

func (l *StatusLedger) SetRootStatus(status Status) error {
	return l.SetStatus(RootStatusKey, status)
}

// ClearStatus removes key so subsequent reads fall back to the caller default.
func (l *StatusLedger) ClearStatus(key string) {
	if *l == nil {
		return
	}
	if key == "" {
		key = RootStatusKey
	}

	delete(*l, key)
}

func (l StatusLedger) clone() StatusLedger {
	if l == nil {
		return nil
	}

	cp := make(StatusLedger, len(l))
	for k, v := range l {
		cp[k] = v
	}

	return cp
}
