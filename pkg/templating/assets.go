package templating

import _ "embed"

// StylesheetName is the base stylesheet the built-in theme links to.
const StylesheetName = "signpost.css"

//go:embed defaults/signpost.css
var baseStylesheet []byte

// Stylesheet returns the base layout stylesheet of the built-in theme.
func Stylesheet() []byte {
	return baseStylesheet
}
