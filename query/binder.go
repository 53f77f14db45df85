package query

import (
	"fmt"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

const (
	positionalMarker = '?'
	namedMarker      = ':'
)

// Bind replaces every ?N or :name placeholder of template with the Extended JSON
// literal of its value. Placeholders inside quoted strings are left untouched.
//
// A colon is read as a named placeholder unless it separates a document key from
// its value, i.e. it follows a quoted key, or a bare key inside { }.
func Bind(template string, params Params) (string, error) {
	var (
		out      strings.Builder
		style    byte
		brackets []byte
		lastSig  byte
	)
	out.Grow(len(template))

	for i := 0; i < len(template); {
		c := template[i]
		switch {
		case c == '\'' || c == '"':
			end, err := scanString(template, i)
			if err != nil {
				return "", err
			}
			out.WriteString(template[i:end])
			lastSig = c
			i = end
			continue

		case c == positionalMarker && i+1 < len(template) && isDigit(template[i+1]):
			j := i + 1
			for j < len(template) && isDigit(template[j]) {
				j++
			}
			placeholder := template[i:j]
			if style == namedMarker {
				return "", bindingErr(placeholder, "template mixes positional and named placeholders")
			}
			style = positionalMarker

			literal, err := bindPositional(placeholder, params)
			if err != nil {
				return "", err
			}
			out.WriteString(literal)
			lastSig = literal[len(literal)-1]
			i = j
			continue

		case c == namedMarker && i+1 < len(template) && isIdentStart(template[i+1]) && !isKeySeparator(lastSig, brackets):
			j := i + 1
			for j < len(template) && isIdentPart(template[j]) && template[j] != '.' {
				j++
			}
			placeholder := template[i:j]
			if style == positionalMarker {
				return "", bindingErr(placeholder, "template mixes positional and named placeholders")
			}
			style = namedMarker

			literal, err := bindNamed(placeholder, params)
			if err != nil {
				return "", err
			}
			out.WriteString(literal)
			lastSig = literal[len(literal)-1]
			i = j
			continue

		case c == '{' || c == '[' || c == '(':
			brackets = append(brackets, c)

		case c == '}' || c == ']' || c == ')':
			if len(brackets) > 0 {
				brackets = brackets[:len(brackets)-1]
			}
		}

		out.WriteByte(c)
		if !isSpace(c) {
			lastSig = c
		}
		i++
	}

	return out.String(), nil
}

func bindPositional(placeholder string, params Params) (string, error) {
	idx, err := strconv.Atoi(placeholder[1:])
	if err != nil {
		return "", bindingErr(placeholder, "invalid parameter index")
	}
	if idx < 1 {
		return "", bindingErr(placeholder, "positional parameters start at 1")
	}
	if params == nil {
		return "", bindingErr(placeholder, "no parameters supplied")
	}
	if params.named() {
		return "", bindingErr(placeholder, "positional placeholder used with named parameters")
	}

	val, ok := params.lookupIndex(idx)
	if !ok {
		return "", bindingErr(placeholder, "index exceeds the number of supplied parameters")
	}

	return encodePlaceholder(placeholder, val)
}

func bindNamed(placeholder string, params Params) (string, error) {
	if params == nil {
		return "", bindingErr(placeholder, "no parameters supplied")
	}
	if !params.named() {
		return "", bindingErr(placeholder, "named placeholder used with positional parameters")
	}

	val, ok := params.lookupName(placeholder[1:])
	if !ok {
		return "", bindingErr(placeholder, "no value for parameter %q", placeholder[1:])
	}

	return encodePlaceholder(placeholder, val)
}

func encodePlaceholder(placeholder string, val any) (string, error) {
	literal, err := EncodeValue(val)
	if err != nil {
		return "", bindingErr(placeholder, "%v", err)
	}
	return literal, nil
}

// EncodeValue renders v as a canonical Extended JSON literal. Integer widths and
// doubles keep their BSON type when the literal is parsed back.
func EncodeValue(v any) (string, error) {
	data, err := bson.MarshalExtJSON(bson.D{{Key: "v", Value: v}}, true, false)
	if err != nil {
		return "", fmt.Errorf("cannot encode %T: %w", v, err)
	}

	s := string(data)
	const prefix = `{"v":`
	if !strings.HasPrefix(s, prefix) || !strings.HasSuffix(s, "}") {
		return "", fmt.Errorf("cannot encode %T: unexpected extended json %s", v, s)
	}

	return s[len(prefix) : len(s)-1], nil
}

func isKeySeparator(lastSig byte, brackets []byte) bool {
	if lastSig == '\'' || lastSig == '"' {
		return true
	}
	if isIdentPart(lastSig) && len(brackets) > 0 && brackets[len(brackets)-1] == '{' {
		return true
	}
	return false
}

// scanString returns the index just past the string literal starting at src[start].
func scanString(src string, start int) (int, error) {
	quote := src[start]
	for i := start + 1; i < len(src); i++ {
		switch src[i] {
		case '\\':
			i++
		case quote:
			return i + 1, nil
		}
	}
	return 0, syntaxErr(fragment(src[start:]), "unterminated string literal")
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '.'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func fragment(s string) string {
	const max = 40
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
