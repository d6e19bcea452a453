package theme

import (
	"os"
	"strings"
)

// Symbols used across the chat. InitSymbols swaps them for ASCII when the
// terminal cannot show Unicode.
var (
	SymbolSuccess  = "✓"
	SymbolError    = "✗"
	SymbolSpinner  = "⏳"
	SymbolArrowR   = "→"
	SymbolBullet   = "•"
	SymbolEllipsis = "…"
	SymbolUser     = "👤 Anda"
	SymbolBot      = "🤖 Asisten"
	SymbolSchool   = "🏫"
)

// SymbolSet is one complete set of symbols.
type SymbolSet struct {
	Success  string
	Error    string
	Spinner  string
	ArrowR   string
	Bullet   string
	Ellipsis string
	User     string
	Bot      string
	School   string
}

var unicodeSymbols = SymbolSet{
	Success:  "✓",
	Error:    "✗",
	Spinner:  "⏳",
	ArrowR:   "→",
	Bullet:   "•",
	Ellipsis: "…",
	User:     "👤 Anda",
	Bot:      "🤖 Asisten",
	School:   "🏫",
}

var asciiSymbols = SymbolSet{
	Success:  "[OK]",
	Error:    "[ERR]",
	Spinner:  "[...]",
	ArrowR:   "->",
	Bullet:   "*",
	Ellipsis: "...",
	User:     "Anda",
	Bot:      "Asisten",
	School:   "",
}

// DetectUnicodeSupport reports whether Unicode symbols should be used.
// ABSENSI_ASCII_SYMBOLS=1 forces ASCII; otherwise a UTF-8 locale or an
// unset locale means Unicode.
func DetectUnicodeSupport() bool {
	if v := os.Getenv("ABSENSI_ASCII_SYMBOLS"); v == "1" || strings.EqualFold(v, "true") {
		return false
	}
	for _, key := range []string{"LC_ALL", "LC_CTYPE", "LANG"} {
		val := strings.ToLower(os.Getenv(key))
		if val == "" {
			continue
		}
		return strings.Contains(val, "utf-8") || strings.Contains(val, "utf8")
	}
	return true
}

// InitSymbols selects the symbol set for the current terminal.
func InitSymbols() {
	set := unicodeSymbols
	if !DetectUnicodeSupport() {
		set = asciiSymbols
	}
	SymbolSuccess = set.Success
	SymbolError = set.Error
	SymbolSpinner = set.Spinner
	SymbolArrowR = set.ArrowR
	SymbolBullet = set.Bullet
	SymbolEllipsis = set.Ellipsis
	SymbolUser = set.User
	SymbolBot = set.Bot
	SymbolSchool = set.School
}

func init() {
	InitSymbols()
}
