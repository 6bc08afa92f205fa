package connector

import (
	"fmt"
	"regexp"
	"strconv"
)

// Token is a change token: the 13 digit millisecond timestamp that also
// names the snapshot it was issued for.
type Token string

var tokenPattern = regexp.MustCompile(`^[0-9]{13}$`)

// NoToken is returned when there is no usable token
const NoToken Token = ""

// NewToken formats a millisecond timestamp as a token
func NewToken(millis int64) Token {
	return Token(fmt.Sprintf("%013d", millis))
}

// ParseToken accepts only exactly 13 decimal digits. Anything else means
// "no prior token".
func ParseToken(s string) (Token, bool) {
	if !tokenPattern.MatchString(s) {
		return NoToken, false
	}
	return Token(s), true
}

// Valid reports whether the token has the wire format
func (t Token) Valid() bool {
	return tokenPattern.MatchString(string(t))
}

// Millis returns the timestamp, or -1 for an invalid token
func (t Token) Millis() int64 {
	if !t.Valid() {
		return -1
	}
	ms, err := strconv.ParseInt(string(t), 10, 64)
	if err != nil {
		return -1
	}
	return ms
}

func (t Token) String() string {
	return string(t)
}
