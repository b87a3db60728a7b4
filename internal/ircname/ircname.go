// Package ircname maps remote entities onto IRC-safe names. The mapping is
// a pure function of the entity's fields, so a freshly fetched entity list
// can be searched linearly to reverse it.
package ircname

import (
	"strings"

	"github.com/ircgate/ircgate/internal/remote"
)

// FromEntity derives the IRC name for an entity. Chats and broadcast
// channels get a leading '#'; users map to bare nicks.
func FromEntity(e remote.Entity) string {
	name := baseName(e)
	if e.Kind == remote.KindChat || e.Kind == remote.KindChannel {
		return "#" + name
	}
	return name
}

// baseName prefers the display name, then first+last name, then username,
// then the raw id. Whitespace becomes underscores so the result is a single
// IRC token. Never empty for a well-formed entity.
func baseName(e remote.Entity) string {
	name := e.DisplayName
	if name == "" {
		parts := make([]string, 0, 2)
		if e.FirstName != "" {
			parts = append(parts, e.FirstName)
		}
		if e.LastName != "" {
			parts = append(parts, e.LastName)
		}
		name = strings.Join(parts, "_")
	}
	if name == "" && e.Title != "" {
		name = e.Title
	}
	if name == "" {
		if e.Username != "" {
			return e.Username
		}
		return e.ID
	}
	return Normalize(name)
}

// Normalize replaces every space with an underscore so the result is a
// single IRC token.
func Normalize(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), " ", "_")
}
