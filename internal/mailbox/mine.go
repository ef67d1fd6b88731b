package mailbox

import (
	"fmt"
	"regexp"
)

var (
	uuidPattern  = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[1-5][0-9a-fA-F]{3}-[89abAB][0-9a-fA-F]{3}-[0-9a-fA-F]{12}`)
	digitsRunPat = regexp.MustCompile(`\d+`)
)

// MineUUID retorna el primer token con forma de UUID (versiones 1-5).
func MineUUID(text string) (string, error) {
	if m := uuidPattern.FindString(text); m != "" {
		return m, nil
	}
	return "", fmt.Errorf("%w: uuid", ErrTokenPatternNotFound)
}

// MineOTP retorna la primera corrida de exactamente length dígitos.
// Corridas más largas (teléfonos, timestamps) no cuentan.
func MineOTP(text string, length int) (string, error) {
	if length <= 0 {
		length = DefaultOTPLength
	}
	for _, run := range digitsRunPat.FindAllString(text, -1) {
		if len(run) == length {
			return run, nil
		}
	}
	return "", fmt.Errorf("%w: %d-digit otp", ErrTokenPatternNotFound, length)
}
