package singleton

import "fmt"

// Strategy selects how an access reaches the shared instance.
type Strategy int

const (
	// SingleCheckLocking takes the creation guard on every call.
	SingleCheckLocking Strategy = iota
	// DoubleCheckLocking reads the slot without the guard and only locks
	// while the slot is still empty.
	DoubleCheckLocking
	// FirstUseStaticInit builds a dedicated instance behind a run-once latch.
	FirstUseStaticInit
	// EagerInit reads an instance that was built before the registry was
	// handed out. Only valid on an eager registry.
	EagerInit
)

var strategyNames = [...]string{
	SingleCheckLocking: "single-check",
	DoubleCheckLocking: "double-check",
	FirstUseStaticInit: "first-use",
	EagerInit:          "eager",
}

func (s Strategy) String() string {
	if s < 0 || int(s) >= len(strategyNames) {
		return fmt.Sprintf("strategy(%d)", int(s))
	}
	return strategyNames[s]
}

// Title is the heading used in benchmark reports.
func (s Strategy) Title() string {
	switch s {
	case SingleCheckLocking:
		return "Single Check Locking"
	case DoubleCheckLocking:
		return "Double Check Locking"
	case FirstUseStaticInit:
		return "First-Use Static Initialization"
	case EagerInit:
		return "Eager Initialization"
	}
	return s.String()
}

// Mode returns the registry mode the strategy runs against.
func (s Strategy) Mode() Mode {
	if s == EagerInit {
		return Eager
	}
	return Lazy
}

// ParseStrategy maps a strategy name as printed by String back to its value.
func ParseStrategy(name string) (Strategy, error) {
	for i, n := range strategyNames {
		if n == name {
			return Strategy(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
}

// LazyStrategies returns the lazy strategies in the order they are
// benchmarked.
func LazyStrategies() []Strategy {
	return []Strategy{SingleCheckLocking, DoubleCheckLocking, FirstUseStaticInit}
}

// Mode says whether a registry builds its instance on first access or up
// front.
type Mode int

const (
	Lazy Mode = iota
	Eager
)

func (m Mode) String() string {
	if m == Eager {
		return "eager"
	}
	return "lazy"
}
