// SPDX-FileCopyrightText: The go-submit Authors
//
// SPDX-License-Identifier: MIT

package smtp

import (
	"regexp"
	"strings"
)

// capabilityLine matches one extension line of an EHLO reply: a three digit
// status code, the continuation separator, the extension keyword and an
// optional parameter tail introduced by a space or '='.
var capabilityLine = regexp.MustCompile(`^(?i)(\d{3})([- ])([A-Z0-9-]+)(?:[ =](.*))?$`)

// Capabilities holds the extension set a server advertised in its EHLO
// reply, mapping the uppercased extension keyword to its uppercased,
// space-split parameter tokens. A capability set is only valid for the EHLO
// exchange it was parsed from; a later EHLO reply fully replaces it.
type Capabilities map[string][]string

// ParseCapabilities builds the capability set from the raw text of an EHLO
// reply. The first line of the reply is the status line of the command itself
// and is discarded unconditionally. Lines that do not have the shape of an
// extension line are skipped, so a single malformed or exotic line never
// aborts the parse. When a keyword occurs more than once, the last occurrence
// wins. Parsing the same reply twice yields structurally identical results.
func ParseCapabilities(reply string) Capabilities {
	capabilities := make(Capabilities)
	lines := strings.Split(reply, "\r\n")
	if len(lines) < 2 {
		return capabilities
	}
	for _, line := range lines[1:] {
		match := capabilityLine.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		params := []string{}
		if match[4] != "" {
			params = strings.Fields(strings.ToUpper(match[4]))
		}
		capabilities[strings.ToUpper(match[3])] = params
	}
	return capabilities
}

// Has reports whether the server advertised the given extension keyword. The
// lookup is case-insensitive.
func (c Capabilities) Has(keyword string) bool {
	_, ok := c[strings.ToUpper(keyword)]
	return ok
}

// Params returns the parameter tokens advertised for the given extension
// keyword, or nil if the extension is not present. The lookup is
// case-insensitive.
func (c Capabilities) Params(keyword string) []string {
	return c[strings.ToUpper(keyword)]
}
