package email

import (
	"strings"
)

// Mask hides most of the local part so addresses can appear in logs:
// "ana.perez@example.com" becomes "a***@example.com".
func Mask(address string) string {
	at := strings.LastIndexByte(address, '@')
	if at <= 0 {
		return "***"
	}
	first := []rune(address[:at])[0]
	return string(first) + "***" + address[at:]
}

// MaskPhone keeps only the last two digits of a phone number.
func MaskPhone(phone string) string {
	runes := []rune(strings.TrimSpace(phone))
	if len(runes) <= 2 {
		return "***"
	}
	return "***" + string(runes[len(runes)-2:])
}
