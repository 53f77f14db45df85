package query

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokOp
	tokValue
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

var comparisonOps = map[string]string{
	"=":  "",
	"==": "",
	"!=": "$ne",
	"<>": "$ne",
	"<":  "$lt",
	"<=": "$lte",
	">":  "$gt",
	">=": "$gte",
}

func tokenize(src string) ([]token, error) {
	var toks []token
	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case isSpace(c):
			i++

		case c == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", pos: i})
			i++

		case c == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", pos: i})
			i++

		case c == ',':
			toks = append(toks, token{kind: tokComma, text: ",", pos: i})
			i++

		case c == '=' || c == '!' || c == '<' || c == '>':
			j := i + 1
			if j < len(src) && (src[j] == '=' || (c == '<' && src[j] == '>')) {
				j++
			}
			op := src[i:j]
			if _, ok := comparisonOps[op]; !ok {
				return nil, syntaxErr(fragment(src[i:]), "unknown operator %q", op)
			}
			toks = append(toks, token{kind: tokOp, text: op, pos: i})
			i = j

		case c == '\'' || c == '"':
			end, err := scanString(src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{kind: tokValue, text: src[i:end], pos: i})
			i = end

		case c == '{' || c == '[':
			end, err := scanBalanced(src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{kind: tokValue, text: src[i:end], pos: i})
			i = end

		case isDigit(c) || ((c == '-' || c == '+') && i+1 < len(src) && isDigit(src[i+1])):
			j := i + 1
			for j < len(src) && isNumberPart(src[j]) {
				j++
			}
			toks = append(toks, token{kind: tokValue, text: src[i:j], pos: i})
			i = j

		case isIdentStart(c):
			j := i + 1
			for j < len(src) && isIdentPart(src[j]) {
				j++
			}
			toks = append(toks, token{kind: tokIdent, text: src[i:j], pos: i})
			i = j

		default:
			return nil, syntaxErr(fragment(src[i:]), "unexpected character %q", c)
		}
	}

	return toks, nil
}

// scanBalanced returns the index just past the bracket group opened at src[start].
func scanBalanced(src string, start int) (int, error) {
	depth := 0
	for i := start; i < len(src); i++ {
		switch src[i] {
		case '\'', '"':
			end, err := scanString(src, i)
			if err != nil {
				return 0, err
			}
			i = end - 1
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i + 1, nil
			}
		}
	}
	return 0, syntaxErr(fragment(src[start:]), "unbalanced literal delimiters")
}

type objectQueryParser struct {
	src    string
	toks   []token
	pos    int
	fields FieldMapper
}

func newObjectQueryParser(src string, fields FieldMapper) (*objectQueryParser, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	if len(toks) == 0 {
		return nil, syntaxErr("", "empty query")
	}
	return &objectQueryParser{src: src, toks: toks, fields: fields}, nil
}

func parseObjectQuery(src string, fields FieldMapper) (bson.D, error) {
	p, err := newObjectQueryParser(src, fields)
	if err != nil {
		return nil, err
	}

	doc, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.done() {
		return nil, p.errorAt(p.peek(), "unexpected %q", p.peek().text)
	}

	return doc, nil
}

// parseAssignments reads "f1 = v1, f2 = v2" (or "and" separated) into a document.
func parseAssignments(src string, fields FieldMapper) (bson.D, error) {
	p, err := newObjectQueryParser(src, fields)
	if err != nil {
		return nil, err
	}

	var (
		doc  bson.D
		seen = map[string]struct{}{}
	)
	for {
		fieldTok := p.next()
		if fieldTok.kind != tokIdent {
			return nil, p.errorAt(fieldTok, "expected a field name")
		}
		field, err := p.resolveField(fieldTok)
		if err != nil {
			return nil, err
		}

		opTok := p.next()
		if opTok.kind != tokOp || comparisonOps[opTok.text] != "" {
			return nil, p.errorAt(opTok, "updates only accept '=' assignments")
		}

		val, err := p.parseValue()
		if err != nil {
			return nil, err
		}

		if _, dup := seen[field]; dup {
			return nil, p.errorAt(fieldTok, "field %s assigned twice", field)
		}
		seen[field] = struct{}{}
		doc = append(doc, bson.E{Key: field, Value: val})

		if p.done() {
			return doc, nil
		}

		sep := p.next()
		if sep.kind != tokComma && !sep.isKeyword("and") {
			return nil, p.errorAt(sep, "expected ',' between assignments")
		}
	}
}

func (p *objectQueryParser) parseOr() (bson.D, error) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	branches := []bson.D{first}
	for p.peek().isKeyword("or") {
		p.next()
		next, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		branches = append(branches, next)
	}

	if len(branches) == 1 {
		return first, nil
	}

	arr := make(bson.A, len(branches))
	for i, b := range branches {
		arr[i] = b
	}
	return bson.D{{Key: "$or", Value: arr}}, nil
}

func (p *objectQueryParser) parseAnd() (bson.D, error) {
	first, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	terms := []bson.D{first}
	for p.peek().isKeyword("and") {
		p.next()
		next, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		terms = append(terms, next)
	}

	return mergeConjunction(terms), nil
}

// mergeConjunction flattens the terms into one document when no key repeats and
// falls back to $and otherwise.
func mergeConjunction(terms []bson.D) bson.D {
	if len(terms) == 1 {
		return terms[0]
	}

	keys := map[string]struct{}{}
	var flat bson.D
	for _, t := range terms {
		for _, e := range t {
			if _, dup := keys[e.Key]; dup {
				arr := make(bson.A, len(terms))
				for i, term := range terms {
					arr[i] = term
				}
				return bson.D{{Key: "$and", Value: arr}}
			}
			keys[e.Key] = struct{}{}
			flat = append(flat, e)
		}
	}

	return flat
}

func (p *objectQueryParser) parseUnary() (bson.D, error) {
	if p.peek().kind == tokLParen {
		open := p.next()
		doc, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRParen {
			return nil, p.errorAt(open, "missing closing parenthesis")
		}
		p.next()
		return doc, nil
	}

	return p.parsePredicate()
}

func (p *objectQueryParser) parsePredicate() (bson.D, error) {
	fieldTok := p.next()
	if fieldTok.kind != tokIdent || isReserved(fieldTok.text) {
		return nil, p.errorAt(fieldTok, "expected a field name")
	}
	field, err := p.resolveField(fieldTok)
	if err != nil {
		return nil, err
	}

	opTok := p.next()
	switch {
	case opTok.kind == tokOp:
		val, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		if op := comparisonOps[opTok.text]; op != "" {
			return bson.D{{Key: field, Value: bson.D{{Key: op, Value: val}}}}, nil
		}
		return bson.D{{Key: field, Value: val}}, nil

	case opTok.isKeyword("in"):
		return p.parseMembership(field, "$in")

	case opTok.isKeyword("not"):
		in := p.next()
		if !in.isKeyword("in") {
			return nil, p.errorAt(in, "expected 'in' after 'not'")
		}
		return p.parseMembership(field, "$nin")

	case opTok.isKeyword("like"):
		val, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		if _, ok := val.(string); !ok {
			return nil, p.errorAt(opTok, "like expects a string pattern")
		}
		return bson.D{{Key: field, Value: bson.D{{Key: "$regex", Value: val}}}}, nil

	case opTok.isKeyword("is"):
		negate := false
		next := p.next()
		if next.isKeyword("not") {
			negate = true
			next = p.next()
		}
		if !next.isKeyword("null") {
			return nil, p.errorAt(next, "expected 'null' after 'is'")
		}
		if negate {
			return bson.D{{Key: field, Value: bson.D{{Key: "$ne", Value: nil}}}}, nil
		}
		return bson.D{{Key: field, Value: nil}}, nil
	}

	return nil, p.errorAt(opTok, "unknown operator %q", opTok.text)
}

func (p *objectQueryParser) parseMembership(field, op string) (bson.D, error) {
	start := p.peek()
	val, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	if _, ok := val.(bson.A); !ok {
		return nil, p.errorAt(start, "%s expects a list", op)
	}
	return bson.D{{Key: field, Value: bson.D{{Key: op, Value: val}}}}, nil
}

func (p *objectQueryParser) parseValue() (any, error) {
	tok := p.next()
	switch tok.kind {
	case tokValue:
		return ParseValue(tok.text)

	case tokIdent:
		lower := strings.ToLower(tok.text)
		if lower == "true" || lower == "false" || lower == "null" {
			return ParseValue(lower)
		}
		if p.peek().kind == tokLParen {
			// shell helper such as ObjectId('...')
			p.next()
			arg := p.next()
			closing := p.next()
			if arg.kind != tokValue || closing.kind != tokRParen {
				return nil, p.errorAt(tok, "malformed %s()", tok.text)
			}
			return ParseValue(tok.text + "(" + arg.text + ")")
		}
	}

	return nil, p.errorAt(tok, "expected a value")
}

func (p *objectQueryParser) resolveField(tok token) (string, error) {
	if p.fields == nil {
		return tok.text, nil
	}

	head, rest, nested := strings.Cut(tok.text, ".")
	name, ok := p.fields.FieldName(head)
	if !ok {
		return "", p.errorAt(tok, "unknown field %q", head)
	}
	if nested {
		return name + "." + rest, nil
	}
	return name, nil
}

func (p *objectQueryParser) done() bool {
	return p.pos >= len(p.toks)
}

func (p *objectQueryParser) peek() token {
	if p.done() {
		return token{kind: -1, pos: len(p.src)}
	}
	return p.toks[p.pos]
}

func (p *objectQueryParser) next() token {
	tok := p.peek()
	if !p.done() {
		p.pos++
	}
	return tok
}

func (p *objectQueryParser) errorAt(tok token, format string, args ...any) error {
	if tok.pos >= len(p.src) {
		return syntaxErr(fragment(p.src), "unexpected end of query: "+format, args...)
	}
	return syntaxErr(fragment(p.src[tok.pos:]), format, args...)
}

func (t token) isKeyword(word string) bool {
	return t.kind == tokIdent && strings.EqualFold(t.text, word)
}

func isReserved(word string) bool {
	switch strings.ToLower(word) {
	case "and", "or", "not", "in", "like", "is", "null", "true", "false":
		return true
	}
	return false
}
