package ports

import "github.com/viow-dev/viow-sdk/domain/entities"

// HeaderParser decodes a library Header from its serialized form.
type HeaderParser interface {
	// Parse unmarshals header bytes into a Header struct.
	Parse(data []byte) (*entities.Header, error)
}
