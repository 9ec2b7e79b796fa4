package wireformat

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Marshal encodes v for the guest boundary.
func Marshal(v any) ([]byte, error) {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("wireformat: encode %T: %w", v, err)
	}
	return b, nil
}

// Unmarshal decodes data into v.
func Unmarshal(data []byte, v any) error {
	if err := msgpack.Unmarshal(data, v); err != nil {
		return fmt.Errorf("wireformat: decode %T: %w", v, err)
	}
	return nil
}
