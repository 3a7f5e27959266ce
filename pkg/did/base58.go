package did

import "fmt"

// base58Alphabet is the Bitcoin Base58 alphabet.
const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// base58Encode encodes a byte slice to base58btc (Bitcoin alphabet).
func base58Encode(input []byte) string {
	if len(input) == 0 {
		return ""
	}

	// Count leading zeros
	leadingZeros := 0
	for _, b := range input {
		if b != 0 {
			break
		}
		leadingZeros++
	}

	// Allocate enough space for the result
	// base58 encoding increases size by approximately 137/100
	size := len(input)*138/100 + 1
	buf := make([]byte, size)

	// Process each byte
	var length int
	for _, b := range input {
		carry := int(b)
		for i := 0; i < length || carry != 0; i++ {
			if i < length {
				carry += 256 * int(buf[i])
			}
			buf[i] = byte(carry % 58)
			carry /= 58
			if i >= length {
				length = i + 1
			}
		}
	}

	// Build result string (reverse order)
	result := make([]byte, leadingZeros+length)

	// Add leading '1's for each leading zero byte
	for i := 0; i < leadingZeros; i++ {
		result[i] = '1'
	}

	// Add encoded characters in reverse
	for i := 0; i < length; i++ {
		result[leadingZeros+i] = base58Alphabet[buf[length-1-i]]
	}

	return string(result)
}

// base58Decode decodes a base58btc string to bytes.
func base58Decode(input string) ([]byte, error) {
	if len(input) == 0 {
		return nil, nil
	}

	// Build alphabet index map
	alphabetMap := make(map[rune]int)
	for i, c := range base58Alphabet {
		alphabetMap[c] = i
	}

	// Count leading '1's (representing leading zero bytes)
	leadingOnes := 0
	for _, c := range input {
		if c != '1' {
			break
		}
		leadingOnes++
	}

	// Allocate space for result
	// Each base58 character represents slightly less than 1 byte
	size := len(input)*733/1000 + 1
	buf := make([]byte, size)

	// Process each character
	var length int
	for _, c := range input {
		val, ok := alphabetMap[c]
		if !ok {
			return nil, fmt.Errorf("invalid base58 character: %c", c)
		}

		carry := val
		for i := 0; i < length || carry != 0; i++ {
			if i < length {
				carry += 58 * int(buf[i])
			}
			buf[i] = byte(carry % 256)
			carry /= 256
			if i >= length {
				length = i + 1
			}
		}
	}

	// Build result (reverse order)
	result := make([]byte, leadingOnes+length)

	// Add leading zeros
	for i := 0; i < leadingOnes; i++ {
		result[i] = 0
	}

	// Add decoded bytes in reverse
	for i := 0; i < length; i++ {
		result[leadingOnes+i] = buf[length-1-i]
	}

	return result, nil
}
