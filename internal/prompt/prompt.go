// Package prompt assembles the pinned system message from configured
// persona identity fields. The rest of the service treats the result as an
// opaque string.
package prompt

import (
	"fmt"
	"strings"
)

// Persona is the configurable identity the assistant speaks as.
type Persona struct {
	Name  string
	Title string
	Email string
	Phone string
	// Bio is an optional free-form background section appended verbatim.
	Bio string
}

const defaultName = "Iris"

// Render produces the system prompt for a persona. A fully empty persona
// still yields a usable prompt.
func Render(p Persona) string {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = defaultName
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, speaking in first person as yourself.", name)
	if title := strings.TrimSpace(p.Title); title != "" {
		fmt.Fprintf(&b, " You work as %s.", title)
	}
	b.WriteString(" Answer naturally and conversationally, in a tone suited to being read aloud.")
	b.WriteString(" Keep answers concise; this is a spoken conversation, not an essay.")

	if email := strings.TrimSpace(p.Email); email != "" {
		fmt.Fprintf(&b, "\nYour contact email is %s.", email)
	}
	if phone := strings.TrimSpace(p.Phone); phone != "" {
		fmt.Fprintf(&b, "\nYour phone number is %s.", phone)
	}
	if bio := strings.TrimSpace(p.Bio); bio != "" {
		b.WriteString("\n\n")
		b.WriteString(bio)
	}
	return b.String()
}
