package utils

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"
)

const seatsPerRow = 10

// Fingerprint returns a stable short hash of a QR payload so journal
// rows can be correlated without storing the token itself.
func Fingerprint(payload string) string {
	sum := blake3.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:16])
}

// MaskToken keeps the first and last four characters of a token.
func MaskToken(payload string) string {
	r := []rune(payload)
	if len(r) <= 8 {
		return strings.Repeat("*", len(r))
	}
	return string(r[:4]) + strings.Repeat("*", len(r)-8) + string(r[len(r)-4:])
}

// SeatLabel maps a seat number to a row letter and column, ten seats per
// row: 1 -> A1, 17 -> B7. Numbers outside rows A-Z render as "#n".
func SeatLabel(seatNumber int) string {
	if seatNumber < 1 {
		return fmt.Sprintf("#%d", seatNumber)
	}
	index := seatNumber - 1
	row := index / seatsPerRow
	if row >= 26 {
		return fmt.Sprintf("#%d", seatNumber)
	}
	return fmt.Sprintf("%c%d", 'A'+rune(row), index%seatsPerRow+1)
}
