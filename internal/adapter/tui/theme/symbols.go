package theme

import (
	"os"
	"strings"
)

// Glyphs used across the TUI. InitSymbols picks the Unicode or ASCII set.
var (
	SymbolSuccess  string
	SymbolError    string
	SymbolArrowR   string
	SymbolBullet   string
	SymbolEllipsis string
	SymbolSecret   string
)

// SymbolSet is one complete set of glyphs.
type SymbolSet struct {
	Success, Error           string
	ArrowR, Bullet, Ellipsis string
	Secret                   string // echo for hidden input; must be one rune
}

var (
	unicodeSymbols = SymbolSet{
		Success: "✓", Error: "✗",
		ArrowR: "›", Bullet: "·", Ellipsis: "…",
		Secret: "•",
	}
	asciiSymbols = SymbolSet{
		Success: "[OK]", Error: "[ERR]",
		ArrowR: ">", Bullet: "-", Ellipsis: "...",
		Secret: "*",
	}
)

// DetectUnicodeSupport reports whether glyphs outside ASCII should be used.
// ARBITER_LAUNCHER_ASCII_SYMBOLS forces ASCII; so does the Linux virtual
// console, whose font lacks most of the set.
func DetectUnicodeSupport() bool {
	if v := os.Getenv("ARBITER_LAUNCHER_ASCII_SYMBOLS"); v == "1" || strings.EqualFold(v, "true") {
		return false
	}
	return os.Getenv("TERM") != "linux"
}

// InitSymbols assigns the Symbol* variables. Runs at init; tests call it
// again after changing the environment.
func InitSymbols() {
	set := unicodeSymbols
	if !DetectUnicodeSupport() {
		set = asciiSymbols
	}
	SymbolSuccess, SymbolError = set.Success, set.Error
	SymbolArrowR, SymbolBullet, SymbolEllipsis = set.ArrowR, set.Bullet, set.Ellipsis
	SymbolSecret = set.Secret
}

// SecretRune is the echo character used for hidden input.
func SecretRune() rune {
	return []rune(SymbolSecret)[0]
}

func init() {
	InitSymbols()
}
