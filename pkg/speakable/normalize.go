// Package speakable converts rich or marked-up text into text suitable for
// speech synthesis.
//
// Normalize is a pure, idempotent function: markup is stripped, emoji are
// removed, and mathematical notation is rewritten into spoken phrases.
// The rules are heuristic rather than a full parser; ambiguous cases keep
// their prose reading.
package speakable

import (
	"html"
	"regexp"
	"strings"
)

var (
	htmlTagRe    = regexp.MustCompile(`<[^>]+>`)
	blockquoteRe = regexp.MustCompile(`(?m)^\s*>+\s?`)
	bulletRe     = regexp.MustCompile(`(?m)^\s*[-+*]\s+`)
	emphasisRe   = regexp.MustCompile("\\*\\*|__|`+")
	headingRe    = regexp.MustCompile(`(?m)^\s*#{1,6}\s*`)
	linkRe       = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	rangeRe      = regexp.MustCompile(`(\d)\s*-\s*(\d)`)
	emojiRe      = regexp.MustCompile(`[\x{1F600}-\x{1F64F}\x{1F300}-\x{1F5FF}\x{1F680}-\x{1F6FF}\x{1F1E0}-\x{1F1FF}]+`)
	whitespaceRe = regexp.MustCompile(`\s+`)

	fracRe       = regexp.MustCompile(`\\frac\s*\{([^}]+)\}\s*\{([^}]+)\}`)
	sizingRe     = regexp.MustCompile(`\\(left|right)\s*`)
	wrapperRe    = regexp.MustCompile(`\\(boxed|text|operatorname|mathrm|mathbf|mathit|mathbb|mathcal|textrm|textbf|textit)\s*\{([^{}]+)\}`)
	straySlashRe = regexp.MustCompile(`\\([A-Za-z])`)

	caretRe           = regexp.MustCompile(`([A-Za-z0-9_.()\[\])]+)\s*\^\s*(\{[^}]+\}|[A-Za-z0-9]+)`)
	standaloneCaretRe = regexp.MustCompile(`\^\s*(\{[^}]+\}|\d+|[A-Za-z]+)`)
	superscriptRe     = regexp.MustCompile(`([A-Za-z0-9_.()\[\]{}]+)([\x{2070}\x{00B9}\x{00B2}\x{00B3}\x{2074}-\x{2079}\x{207A}\x{207B}\x{207D}\x{207E}\x{207F}]+)`)
	slashRe           = regexp.MustCompile(`([A-Za-z0-9()\[\]{}]+)\s*/\s*([A-Za-z0-9()\[\]{}]+)`)
	minusRe           = regexp.MustCompile(`([A-Za-z0-9)\]}]+)\s*-\s*([A-Za-z0-9(\[{]+)`)
	unaryMinusRe      = regexp.MustCompile(`(^|[\s(=/+*^])-\s*([A-Za-z0-9])`)
)

// latexWords maps LaTeX commands to their spoken form.
var latexWords = map[string]string{
	`\pi`: "pi", `\theta`: "theta", `\alpha`: "alpha", `\beta`: "beta",
	`\gamma`: "gamma", `\delta`: "delta", `\lambda`: "lambda", `\mu`: "mu",
	`\nu`: "nu", `\phi`: "phi", `\psi`: "psi", `\omega`: "omega",
	`\sin`: "sin", `\cos`: "cos", `\tan`: "tan", `\log`: "log", `\ln`: "ln",
}

// mathWords are tokens treated as mathematical operands when they appear
// around "/" or "-".
var mathWords = map[string]bool{
	"sin": true, "cos": true, "tan": true, "log": true, "ln": true,
	"pi": true, "theta": true, "alpha": true, "beta": true, "gamma": true,
	"delta": true, "lambda": true, "phi": true, "psi": true, "omega": true,
	"sigma": true, "mu": true, "nu": true, "eta": true, "rho": true,
	"xi": true, "zeta": true, "k": true, "n": true, "m": true,
	"x": true, "y": true, "z": true,
}

// superscriptDigits maps Unicode superscript runes to their plain form.
var superscriptDigits = map[rune]string{
	'⁰': "0", '¹': "1", '²': "2", '³': "3", '⁴': "4",
	'⁵': "5", '⁶': "6", '⁷': "7", '⁸': "8", '⁹': "9",
	'⁺': "+", '⁻': "-", '⁽': "(", '⁾': ")", 'ⁿ': "n",
}

// Normalize converts rich/marked-up text into speakable text.
// It is idempotent: Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	text = html.UnescapeString(text)
	text = htmlTagRe.ReplaceAllString(text, "")

	// Markdown structure, conservatively (single '*' kept for math).
	text = blockquoteRe.ReplaceAllString(text, "")
	text = bulletRe.ReplaceAllString(text, "")
	text = emphasisRe.ReplaceAllString(text, "")
	text = headingRe.ReplaceAllString(text, "")

	// Keep link text and include the URL: [text](url) -> "text (url)".
	text = linkRe.ReplaceAllString(text, "$1 ($2)")

	text = normalizeMath(text)

	// Numeric ranges read as "to"; loop so 10-20-30 converges.
	for rangeRe.MatchString(text) {
		text = rangeRe.ReplaceAllString(text, "$1 to $2")
	}

	text = emojiRe.ReplaceAllString(text, "")
	text = whitespaceRe.ReplaceAllString(text, " ")

	return strings.TrimSpace(text)
}

// normalizeMath converts simple math notation to spoken phrases: exponents
// (caret, braced, Unicode superscript), fractions, Greek letters, and the
// "/" and "-" operators when their operands look mathematical.
func normalizeMath(text string) string {
	// Inline math dollar delimiters.
	text = strings.ReplaceAll(text, "$", "")

	text = fracRe.ReplaceAllString(text, "$1 over $2")
	text = sizingRe.ReplaceAllString(text, "")

	// Unwrap formatting commands, e.g. \boxed{X} -> X. Bounded loop
	// handles shallow nesting.
	for i := 0; i < 3 && wrapperRe.MatchString(text); i++ {
		text = wrapperRe.ReplaceAllString(text, "$2")
	}

	for cmd, word := range latexWords {
		text = strings.ReplaceAll(text, cmd, word)
	}
	text = straySlashRe.ReplaceAllString(text, "$1")

	// base^exp and base^{exp}.
	text = caretRe.ReplaceAllStringFunc(text, func(m string) string {
		sub := caretRe.FindStringSubmatch(m)
		return spokenExponent(sub[1], sub[2])
	})

	// ^exp with no explicit base.
	text = standaloneCaretRe.ReplaceAllStringFunc(text, func(m string) string {
		sub := standaloneCaretRe.FindStringSubmatch(m)
		return spokenExponent("", sub[1])
	})

	// Unicode superscripts after a base token.
	text = superscriptRe.ReplaceAllStringFunc(text, func(m string) string {
		sub := superscriptRe.FindStringSubmatch(m)
		var exp strings.Builder
		for _, r := range sub[2] {
			exp.WriteString(superscriptDigits[r])
		}
		if exp.Len() == 0 {
			return sub[1]
		}
		return spokenExponent(sub[1], exp.String())
	})

	// Prefer "by" over "slash" for math-like X/Y.
	text = slashRe.ReplaceAllStringFunc(text, func(m string) string {
		sub := slashRe.FindStringSubmatch(m)
		if isMathy(sub[1]) || isMathy(sub[2]) {
			return sub[1] + " by " + sub[2]
		}
		return sub[1] + "/" + sub[2]
	})

	// Binary '-' reads "minus" in math contexts; numeric ranges keep the
	// hyphen for the later "to" step; prose hyphens stay literal.
	text = minusRe.ReplaceAllStringFunc(text, func(m string) string {
		sub := minusRe.FindStringSubmatch(m)
		left, right := sub[1], sub[2]
		if isAllDigits(left) && isAllDigits(right) {
			return left + "-" + right
		}
		if isMathy(left) || isMathy(right) {
			return left + " minus " + right
		}
		return left + "-" + right
	})

	// Unary minus before a number or variable.
	text = unaryMinusRe.ReplaceAllString(text, "${1}minus $2")

	return text
}

// spokenExponent renders base^exp as speech. A braced exponent has its
// braces stripped first.
func spokenExponent(base, exp string) string {
	if strings.HasPrefix(exp, "{") && strings.HasSuffix(exp, "}") {
		exp = strings.TrimSpace(exp[1 : len(exp)-1])
	}

	var phrase string
	switch exp {
	case "2":
		phrase = "squared"
	case "3":
		phrase = "cubed"
	default:
		phrase = "raised to the power " + exp
	}

	if base == "" {
		return " " + phrase
	}
	return base + " " + phrase
}

// isMathy reports whether a token reads as a mathematical operand.
func isMathy(tok string) bool {
	t := strings.ToLower(tok)
	if len(t) <= 2 {
		return true
	}
	if strings.ContainsAny(t, "0123456789()[]{}") {
		return true
	}
	return mathWords[t]
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
