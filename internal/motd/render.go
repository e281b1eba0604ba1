package motd

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"
)

// SectionSign is the canonical formatting-code marker.
const SectionSign = '§'

var formatRE = regexp.MustCompile(`(?i)\x{00A7}[0-9A-FK-ORX]`)

// legacyColors maps formatting codes to named colors.
var legacyColors = map[byte]string{
	'0': "black",
	'1': "dark_blue",
	'2': "dark_green",
	'3': "dark_aqua",
	'4': "dark_red",
	'5': "dark_purple",
	'6': "gold",
	'7': "gray",
	'8': "dark_gray",
	'9': "blue",
	'a': "green",
	'b': "aqua",
	'c': "red",
	'd': "light_purple",
	'e': "yellow",
	'f': "white",
}

// namedColors maps chat color names to CSS colors.
var namedColors = map[string]string{
	"black":        "#000000",
	"dark_blue":    "#0000AA",
	"dark_green":   "#00AA00",
	"dark_aqua":    "#00AAAA",
	"dark_red":     "#AA0000",
	"dark_purple":  "#AA00AA",
	"gold":         "#FFAA00",
	"gray":         "#AAAAAA",
	"dark_gray":    "#555555",
	"blue":         "#5555FF",
	"green":        "#55FF55",
	"aqua":         "#55FFFF",
	"red":          "#FF5555",
	"light_purple": "#FF55FF",
	"yellow":       "#FFFF55",
	"white":        "#FFFFFF",
}

// FixSectionSigns replaces invalid UTF-8 bytes and U+FFFD with the section sign.
// Servers often send a raw 0xA7 byte that does not survive UTF-8 decoding.
func FixSectionSigns(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "\uFFFD")
	}
	return strings.ReplaceAll(s, "\uFFFD", string(SectionSign))
}

// Strip removes legacy formatting codes.
func Strip(s string) string {
	return formatRE.ReplaceAllString(s, "")
}

type style struct {
	color         string
	bold          bool
	italic        bool
	underlined    bool
	strikethrough bool
	obfuscated    bool
}

func (s style) plain() bool {
	return s == style{}
}

func (s style) apply(c Component) style {
	if css := cssColor(c.Color); css != "" {
		s.color = css
	}
	if c.Bold != nil {
		s.bold = *c.Bold
	}
	if c.Italic != nil {
		s.italic = *c.Italic
	}
	if c.Underlined != nil {
		s.underlined = *c.Underlined
	}
	if c.Strikethrough != nil {
		s.strikethrough = *c.Strikethrough
	}
	if c.Obfuscated != nil {
		s.obfuscated = *c.Obfuscated
	}
	return s
}

// code applies a legacy formatting code. A color code resets decorations.
func (s style) code(c byte, base style) (style, bool) {
	if c >= 'A' && c <= 'Z' {
		c += 'a' - 'A'
	}
	if name, ok := legacyColors[c]; ok {
		return style{color: namedColors[name]}, true
	}

	switch c {
	case 'l':
		s.bold = true
	case 'o':
		s.italic = true
	case 'n':
		s.underlined = true
	case 'm':
		s.strikethrough = true
	case 'k':
		s.obfuscated = true
	case 'r':
		s = base
	case 'x':
		// hex color prefix; the digits that follow are rendered as text
	default:
		return s, false
	}
	return s, true
}

func (s style) css() string {
	var parts []string
	if s.color != "" {
		parts = append(parts, "color: "+s.color)
	}
	if s.bold {
		parts = append(parts, "font-weight: bold")
	}
	if s.italic {
		parts = append(parts, "font-style: italic")
	}

	var deco []string
	if s.underlined {
		deco = append(deco, "underline")
	}
	if s.strikethrough {
		deco = append(deco, "line-through")
	}
	if len(deco) > 0 {
		parts = append(parts, "text-decoration: "+strings.Join(deco, " "))
	}

	return strings.Join(parts, "; ")
}

func cssColor(name string) string {
	if name == "" {
		return ""
	}
	if strings.HasPrefix(name, "#") && len(name) == 7 {
		return strings.ToUpper(name)
	}
	return namedColors[strings.ToLower(name)]
}

// RenderLegacy renders a string with legacy formatting codes as HTML.
func RenderLegacy(s string) string {
	var b strings.Builder
	renderLegacy(&b, s, style{})
	return b.String()
}

// RenderComponent renders a component tree as HTML. Children inherit the parent style.
func RenderComponent(c Component) string {
	var b strings.Builder
	renderComponent(&b, c, style{})
	return b.String()
}

func renderComponent(b *strings.Builder, c Component, parent style) {
	st := parent.apply(c)
	renderLegacy(b, c.Text, st)
	for _, child := range c.Extra {
		renderComponent(b, child, st)
	}
}

func renderLegacy(b *strings.Builder, s string, base style) {
	cur := base
	var seg strings.Builder

	flush := func() {
		if seg.Len() == 0 {
			return
		}
		writeSpan(b, seg.String(), cur)
		seg.Reset()
	}

	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == SectionSign && i+size < len(s) {
			if next, ok := cur.code(s[i+size], base); ok {
				flush()
				cur = next
				i += size + 1
				continue
			}
		}
		seg.WriteString(s[i : i+size])
		i += size
	}
	flush()
}

func writeSpan(b *strings.Builder, text string, st style) {
	text = strings.ReplaceAll(html.EscapeString(text), "\n", "<br>")
	if st.plain() {
		b.WriteString(text)
		return
	}

	b.WriteString("<span")
	if css := st.css(); css != "" {
		b.WriteString(` style="`)
		b.WriteString(css)
		b.WriteString(`"`)
	}
	if st.obfuscated {
		b.WriteString(` class="obfuscated"`)
	}
	b.WriteString(">")
	b.WriteString(text)
	b.WriteString("</span>")
}
