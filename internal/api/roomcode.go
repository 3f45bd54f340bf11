package api

import (
	"errors"
	"regexp"
	"strings"

	"github.com/teris-io/shortid"
)

// Room codes are 6-8 alphanumeric characters, case-sensitive as given.
var roomCodePattern = regexp.MustCompile(`^[a-zA-Z0-9]{6,8}$`)

func ValidRoomCode(code string) bool {
	return roomCodePattern.MatchString(code)
}

// SuggestCode derives a valid room code from a shortid, which may run
// longer than eight characters and contain '-' or '_'.
func SuggestCode() (string, error) {
	for i := 0; i < 16; i++ {
		id, err := shortid.Generate()
		if err != nil {
			return "", err
		}

		cleaned := strings.Map(func(r rune) rune {
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
				return r
			default:
				return -1
			}
		}, id)

		if len(cleaned) > 8 {
			cleaned = cleaned[:8]
		}
		if ValidRoomCode(cleaned) {
			return cleaned, nil
		}
	}

	return "", errors.New("could not derive a valid room code")
}
