package host

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/viow-dev/viow-sdk/domain/entities"
	"github.com/viow-dev/viow-sdk/wireformat"
)

var wasmMagic = []byte{0x00, 0x61, 0x73, 0x6d}

// StampHeader returns module with h appended as the header custom section.
// A module that already carries a header is rejected, since the host reads
// the first one it finds.
func StampHeader(module []byte, h entities.Header) ([]byte, error) {
	if len(module) < 8 || !bytes.Equal(module[:4], wasmMagic) {
		return nil, fmt.Errorf("not a wasm binary module")
	}
	if stamped, err := hasSection(module, wireformat.HeaderSection); err != nil {
		return nil, err
	} else if stamped {
		return nil, fmt.Errorf("module already has a %q section", wireformat.HeaderSection)
	}

	payload, err := json.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("encode header: %w", err)
	}

	// Custom section: id 0, LEB128 size, LEB128 name length, name, payload.
	var content []byte
	content = binary.AppendUvarint(content, uint64(len(wireformat.HeaderSection)))
	content = append(content, wireformat.HeaderSection...)
	content = append(content, payload...)

	out := make([]byte, 0, len(module)+len(content)+6)
	out = append(out, module...)
	out = append(out, 0x00)
	out = binary.AppendUvarint(out, uint64(len(content)))
	return append(out, content...), nil
}

// hasSection walks the section headers looking for a custom section called
// name.
func hasSection(module []byte, name string) (bool, error) {
	rest := module[8:]
	for len(rest) > 0 {
		id := rest[0]
		size, n := binary.Uvarint(rest[1:])
		if n <= 0 || uint64(len(rest)-1-n) < size {
			return false, fmt.Errorf("truncated section at offset %d", len(module)-len(rest))
		}
		body := rest[1+n : 1+n+int(size)]
		rest = rest[1+n+int(size):]
		if id != 0 {
			continue
		}
		nameLen, m := binary.Uvarint(body)
		if m <= 0 || uint64(len(body)-m) < nameLen {
			return false, fmt.Errorf("malformed custom section name")
		}
		if string(body[m:m+int(nameLen)]) == name {
			return true, nil
		}
	}
	return false, nil
}
