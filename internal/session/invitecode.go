package session

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// Invite codes are short uppercase-alphanumeric strings. Generated
// codes are always InviteCodeLength characters; creator-supplied codes
// are normalized and checked against the same alphabet.
const inviteAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const InviteCodeLength = 6

const maxSuppliedCodeLength = 16

func GenerateInviteCode() (string, error) {
	code := make([]byte, InviteCodeLength)
	max := big.NewInt(int64(len(inviteAlphabet)))
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		code[i] = inviteAlphabet[n.Int64()]
	}
	return string(code), nil
}

func NormalizeInviteCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func IsValidInviteCode(code string) bool {
	if code == "" || len(code) > maxSuppliedCodeLength {
		return false
	}
	for _, c := range code {
		if !strings.ContainsRune(inviteAlphabet, c) {
			return false
		}
	}
	return true
}
