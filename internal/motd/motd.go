// Package motd converts a server message-of-the-day into plain text and HTML markup.
//
// A description arrives in one of three shapes: a chat component tree with an "extra"
// list (or a bare list of components), a component object carrying only "text", or a
// bare legacy string with section-sign formatting codes. Parse classifies raw JSON into a Description and
// Normalize renders it. Unparseable input always degrades to Legacy.
package motd

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Description is a parsed MOTD. Implemented by Tree, Text and Legacy only.
type Description interface {
	isDescription()
}

// Tree is a component with a non-empty extra list.
type Tree struct {
	Root Component
}

// Text is a component carrying text and no extra list.
type Text struct {
	Root Component
}

// Legacy is a bare string with legacy formatting codes.
type Legacy string

func (Tree) isDescription()   {}
func (Text) isDescription()   {}
func (Legacy) isDescription() {}

// Component is a chat component.
// A bare JSON string inside an extra list decodes as a component with only Text set.
type Component struct {
	Bold          *bool       `json:"bold,omitempty"`
	Italic        *bool       `json:"italic,omitempty"`
	Underlined    *bool       `json:"underlined,omitempty"`
	Strikethrough *bool       `json:"strikethrough,omitempty"`
	Obfuscated    *bool       `json:"obfuscated,omitempty"`
	Text          string      `json:"text"`
	Color         string      `json:"color,omitempty"`
	Extra         []Component `json:"extra,omitempty"`
}

// UnmarshalJSON accepts both component objects and plain strings.
func (c *Component) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Component{Text: s}
		return nil
	}

	type plain Component
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*c = Component(p)
	return nil
}

// Parse classifies a raw description. A top-level component list is a Tree with an
// empty root. It never fails: anything that is neither a JSON string, a component
// object nor a component list becomes Legacy of the raw text.
func Parse(raw json.RawMessage) Description {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Legacy("")
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return Legacy(s)
		}
	case '{':
		var c Component
		if err := json.Unmarshal(raw, &c); err == nil {
			if len(c.Extra) > 0 {
				return Tree{Root: c}
			}
			return Text{Root: c}
		}
	case '[':
		var list []Component
		if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
			return Tree{Root: Component{Extra: list}}
		}
	}

	return Legacy(string(raw))
}

// Normalize renders a description as plain text and HTML markup.
func Normalize(d Description) (plain, markup string) {
	switch v := d.(type) {
	case Tree:
		return treeText(v.Root), RenderComponent(v.Root)
	case Text:
		text := FixSectionSigns(v.Root.Text)
		return text, RenderComponent(Component{
			Text:          text,
			Color:         v.Root.Color,
			Bold:          v.Root.Bold,
			Italic:        v.Root.Italic,
			Underlined:    v.Root.Underlined,
			Strikethrough: v.Root.Strikethrough,
			Obfuscated:    v.Root.Obfuscated,
		})
	case Legacy:
		s := FixSectionSigns(string(v))
		return Strip(s), RenderLegacy(s)
	default:
		return "", ""
	}
}

// NormalizeRaw is Parse followed by Normalize.
func NormalizeRaw(raw json.RawMessage) (plain, markup string) {
	return Normalize(Parse(raw))
}

// NormalizeString normalizes a bare legacy string.
func NormalizeString(s string) (plain, markup string) {
	return Normalize(Legacy(s))
}

// treeText concatenates the text of a component and its extra fragments depth-first.
func treeText(c Component) string {
	var b strings.Builder
	var walk func(Component)
	walk = func(c Component) {
		b.WriteString(c.Text)
		for _, child := range c.Extra {
			walk(child)
		}
	}
	walk(c)

	return b.String()
}
