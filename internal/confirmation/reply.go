package confirmation

import (
	"strings"
	"unicode"
)

var replyWords = map[string]Response{
	"SI":        ResponseConfirmed,
	"SÍ":        ResponseConfirmed,
	"YES":       ResponseConfirmed,
	"Y":         ResponseConfirmed,
	"OK":        ResponseConfirmed,
	"CONFIRMO":  ResponseConfirmed,
	"CONFIRMAR": ResponseConfirmed,
	"CONFIRM":   ResponseConfirmed,
	"1":         ResponseConfirmed,
	"NO":        ResponseDeclined,
	"N":         ResponseDeclined,
	"CANCELAR":  ResponseDeclined,
	"CANCELO":   ResponseDeclined,
	"CANCEL":    ResponseDeclined,
	"2":         ResponseDeclined,
}

// ParseReply maps a free-text reply to a response using its first word.
func ParseReply(text string) (Response, bool) {
	fields := strings.Fields(strings.ToUpper(text))
	if len(fields) == 0 {
		return "", false
	}
	word := strings.TrimFunc(fields[0], func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	r, ok := replyWords[word]
	return r, ok
}
