package serializer

import "github.com/mr-tron/base58"

// Base58Encode encodes byte slice to the base58 string representation.
func Base58Encode(input []byte) []byte {
	return []byte(base58.Encode(input))
}

// Base58Decode decodes base58 string representation to the byte slice.
func Base58Decode(input []byte) ([]byte, error) {
	decoded, err := base58.Decode(string(input))
	if err != nil {
		return nil, err
	}
	return decoded, nil
}
