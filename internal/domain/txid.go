package domain

import (
	"crypto/rand"
	"math/big"
)

const (
	txidLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	txidDigits  = 8
)

// GenerateTransactionID produces the client-visible human transaction id:
// one uppercase letter followed by eight digits (e.g. "F00429183").
// There is no server-side uniqueness check; ids are generated per call.
func GenerateTransactionID() string {
	buf := make([]byte, 1+txidDigits)
	buf[0] = txidLetters[randInt(len(txidLetters))]
	for i := 1; i < len(buf); i++ {
		buf[i] = byte('0' + randInt(10))
	}
	return string(buf)
}

func randInt(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		// crypto/rand only fails if the OS entropy source is broken
		return 0
	}
	return int(v.Int64())
}
