package fara

import (
	"fmt"
	"regexp"
)

var ajaxIdentifierPattern = regexp.MustCompile(`"ajaxIdentifier":"(.*?)"`)

// AjaxIdentifier returns the plugin identifier the worksheet POST must carry.
//
// The page embeds one ajaxIdentifier per APEX region; the first belongs to an
// unrelated widget and the second to the interactive report, so the second
// occurrence is returned. This is positional and will break if the page gains
// or reorders regions.
func AjaxIdentifier(pageText string) (string, error) {
	matches := ajaxIdentifierPattern.FindAllStringSubmatch(pageText, 2)
	if len(matches) < 2 {
		return "", fmt.Errorf("%w: found %d marker(s), need 2", ErrAjaxIdentifierNotFound, len(matches))
	}
	return matches[1][1], nil
}
