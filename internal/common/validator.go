package common

import (
	"errors"
	"regexp"
)

var imdbTitleIDRE = regexp.MustCompile(`^tt\d+$`)

// ValidateIMDBTitleID checks if the given IMDB title ID is valid.
// It ensures the title starts with 'tt' followed by a numeric suffix.
func ValidateIMDBTitleID(ID string) error {

	if !imdbTitleIDRE.MatchString(ID) {
		return errors.New("invalid IMDB title")
	}

	return nil
}

// ValidateContentType checks if the content type is served by the addon.
// Only 'movie' is supported.
func ValidateContentType(t string) error {
	if t != "movie" {
		return errors.New("invalid content type, only movie is supported")
	}

	return nil
}
