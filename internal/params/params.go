package params

const (
	// SecParam is the computational security parameter κ, in bits.
	SecParam = 256
	// SecBytes is the same parameter expressed in bytes.
	SecBytes = SecParam / 8
)
