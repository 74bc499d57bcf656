package packet

// Limits constrains decode-side memory use. A hostile length or count
// prefix must not be able to force a large allocation before the payload
// bytes actually arrive.
type Limits struct {
	MaxPayloadBytes int
	MaxArrayItems   int
	MaxArrayDepth   int
}

func DefaultLimits() Limits {
	return Limits{
		MaxPayloadBytes: 16 * 1024 * 1024,
		MaxArrayItems:   1 << 20,
		MaxArrayDepth:   4096,
	}
}
