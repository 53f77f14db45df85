package query

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// shell helpers accepted in document literals, mapped to their Extended JSON wrapper
var shellHelpers = map[string]string{
	"ObjectId":      "$oid",
	"ISODate":       "$date",
	"Date":          "$date",
	"NumberInt":     "$numberInt",
	"NumberLong":    "$numberLong",
	"NumberDecimal": "$numberDecimal",
}

// ParseDocument parses a document literal written in relaxed shell syntax
// (single-quoted strings, unquoted keys, ObjectId(...) helpers) or in
// Extended JSON.
func ParseDocument(src string) (bson.D, error) {
	norm, err := normalizeLiteral(strings.TrimSpace(src))
	if err != nil {
		return nil, err
	}

	var doc bson.D
	if err := bson.UnmarshalExtJSON([]byte(norm), false, &doc); err != nil {
		return nil, syntaxErr(fragment(strings.TrimSpace(src)), "%v", err)
	}
	if doc == nil {
		doc = bson.D{}
	}

	return doc, nil
}

// ParseValue parses a single literal value (string, number, boolean, null,
// array, document or shell helper).
func ParseValue(src string) (any, error) {
	norm, err := normalizeLiteral(src)
	if err != nil {
		return nil, err
	}

	var doc bson.D
	if err := bson.UnmarshalExtJSON([]byte(`{"v":`+norm+`}`), false, &doc); err != nil {
		return nil, syntaxErr(fragment(strings.TrimSpace(src)), "invalid value: %v", err)
	}
	if len(doc) != 1 {
		return nil, syntaxErr(fragment(strings.TrimSpace(src)), "expected a single value")
	}

	return doc[0].Value, nil
}

// normalizeLiteral rewrites shell syntax into strict Extended JSON.
func normalizeLiteral(src string) (string, error) {
	var out strings.Builder
	out.Grow(len(src) + 16)

	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == '\'' || c == '"':
			end, err := scanString(src, i)
			if err != nil {
				return "", err
			}
			writeJSONString(&out, src[i:end])
			i = end

		case isDigit(c):
			j := i
			for j < len(src) && isNumberPart(src[j]) {
				j++
			}
			out.WriteString(src[i:j])
			i = j

		case isIdentStart(c):
			j := i
			for j < len(src) && isIdentPart(src[j]) {
				j++
			}
			word := src[i:j]
			next := nextSignificant(src, j)

			switch {
			case word == "true" || word == "false" || word == "null":
				out.WriteString(word)
				i = j
			case next < len(src) && src[next] == ':':
				out.WriteByte('"')
				out.WriteString(word)
				out.WriteByte('"')
				i = j
			case next < len(src) && src[next] == '(':
				end, err := writeShellHelper(&out, src, word, next)
				if err != nil {
					return "", err
				}
				i = end
			default:
				return "", syntaxErr(fragment(src[i:]), "unexpected identifier %q", word)
			}

		default:
			out.WriteByte(c)
			i++
		}
	}

	return out.String(), nil
}

// writeShellHelper converts Name(arg) into {"$wrapper": arg}; open is the index of '('.
func writeShellHelper(out *strings.Builder, src, name string, open int) (int, error) {
	wrapper, ok := shellHelpers[name]
	if !ok {
		return 0, syntaxErr(fragment(src[open-len(name):]), "unknown helper %s()", name)
	}

	closeIdx := -1
	for k := open + 1; k < len(src); k++ {
		if src[k] == '\'' || src[k] == '"' {
			end, err := scanString(src, k)
			if err != nil {
				return 0, err
			}
			k = end - 1
			continue
		}
		if src[k] == ')' {
			closeIdx = k
			break
		}
	}
	if closeIdx < 0 {
		return 0, syntaxErr(fragment(src[open-len(name):]), "unbalanced parenthesis")
	}

	arg := strings.TrimSpace(src[open+1 : closeIdx])
	if arg == "" {
		return 0, syntaxErr(fragment(src[open-len(name):closeIdx+1]), "%s() needs an argument", name)
	}

	out.WriteString(`{"` + wrapper + `":`)
	if arg[0] == '\'' || arg[0] == '"' {
		writeJSONString(out, arg)
	} else {
		// numeric wrappers take their value as a string
		out.WriteString(`"` + arg + `"`)
	}
	out.WriteByte('}')

	return closeIdx + 1, nil
}

// writeJSONString re-quotes a single- or double-quoted literal as a JSON string.
func writeJSONString(out *strings.Builder, lit string) {
	if lit[0] == '"' {
		out.WriteString(lit)
		return
	}

	body := lit[1 : len(lit)-1]
	out.WriteByte('"')
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case c == '\\' && i+1 < len(body) && body[i+1] == '\'':
			out.WriteByte('\'')
			i++
		case c == '\\' && i+1 < len(body):
			out.WriteByte(c)
			out.WriteByte(body[i+1])
			i++
		case c == '"':
			out.WriteString(`\"`)
		default:
			out.WriteByte(c)
		}
	}
	out.WriteByte('"')
}

func isNumberPart(c byte) bool {
	return isDigit(c) || c == '.' || c == 'e' || c == 'E' || c == '+' || c == '-'
}

func nextSignificant(src string, from int) int {
	for from < len(src) && isSpace(src[from]) {
		from++
	}
	return from
}
