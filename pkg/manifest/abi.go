package manifest

import "fmt"

// ABI is the host interface a module is compiled against.
type ABI string

const (
	ABINone       ABI = "none"
	ABIWASI       ABI = "wasi"
	ABIEmscripten ABI = "emscripten"
)

// UnmarshalText rejects unknown ABIs.
func (a *ABI) UnmarshalText(text []byte) error {
	switch v := ABI(text); v {
	case ABINone, ABIWASI, ABIEmscripten:
		*a = v
		return nil
	default:
		return fmt.Errorf("unknown abi %q (want none, wasi or emscripten)", text)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (a ABI) MarshalText() ([]byte, error) {
	if a == "" {
		return []byte(ABINone), nil
	}
	return []byte(a), nil
}
