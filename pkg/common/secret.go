package common

import (
	"crypto/subtle"
	"math/rand"

	"golang.org/x/crypto/argon2"
)

// SaltLen is the length of the salt stored in front of every password hash.
const SaltLen = 8

var letterRunes = []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")

func RandStringRunes(n int) string {
	b := make([]rune, n)
	for i := range b {
		b[i] = letterRunes[rand.Intn(len(letterRunes))]
	}
	return string(b)
}

func NewSalt() string {
	return RandStringRunes(SaltLen)
}

// HashPass returns salt followed by the argon2id key of the password.
func HashPass(plainPassword, salt string) []byte {
	key := argon2.IDKey([]byte(plainPassword), []byte(salt), 1, 64*1024, 4, 32)
	return append([]byte(salt), key...)
}

// CheckPass compares a plain password with a value produced by HashPass.
func CheckPass(stored []byte, plainPassword string) bool {
	if len(stored) <= SaltLen {
		return false
	}
	salt := string(stored[:SaltLen])
	return subtle.ConstantTimeCompare(HashPass(plainPassword, salt), stored) == 1
}
