package txbuilder

// State is the signing lifecycle of a transaction.
type State int

const (
	Unsigned State = iota
	PartiallySigned
	FullySigned
	Broadcastable
)

func (s State) String() string {
	switch s {
	case Unsigned:
		return "unsigned"
	case PartiallySigned:
		return "partially_signed"
	case FullySigned:
		return "fully_signed"
	case Broadcastable:
		return "broadcastable"
	default:
		return "unknown"
	}
}

// StateFor maps a signature count to a state. It never returns Broadcastable,
// which is only reached by sealing a fully signed transaction.
func StateFor(signatures, threshold int) State {
	switch {
	case signatures <= 0:
		return Unsigned
	case signatures < threshold:
		return PartiallySigned
	default:
		return FullySigned
	}
}
