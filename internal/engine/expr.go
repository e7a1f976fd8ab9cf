package engine

import (
	"cmp"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
)

// Expression resolution happens in a fixed order: literal passthrough,
// regex-extracted captures, direct context keys, dotted paths into
// nested blocks, plain bracket lookups, and finally the arithmetic
// grammar. Bracket sub-expressions inside arithmetic are resolved to
// numbers before the surrounding arithmetic is evaluated; evaluating
// the raw string would misparse bracket notation next to operators and
// turn ratios into raw amounts.
var dottedPathRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)+$`)

// resolveExpr resolves a condition or parameter operand against the
// evaluation context. Any failure resolves to nil; callers treat nil
// as "comparison false" or "parameter absent" rather than an error.
func resolveExpr(expr any, ctx map[string]any, extracted map[string]string) any {
	switch v := expr.(type) {
	case nil:
		return nil
	case float64:
		return v
	case int:
		return float64(v)
	case bool:
		return v
	case string:
		return resolveString(v, ctx, extracted)
	}
	return nil
}

func resolveString(expr string, ctx map[string]any, extracted map[string]string) any {
	s := strings.TrimSpace(expr)
	if s == "" {
		return nil
	}

	if raw, ok := extracted[s]; ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
			return f
		}
		return raw
	}

	if v, ok := ctx[s]; ok {
		return v
	}

	if dottedPathRe.MatchString(s) {
		return pathValue(ctx, s)
	}

	if strings.ContainsRune(s, '[') && strings.ContainsRune(s, ']') && !strings.ContainsAny(s, "+-*/()") {
		return bracketValue(ctx, s)
	}

	result, err := evalArithmetic(s, arithmeticContext(ctx, extracted))
	if err != nil {
		return nil
	}
	if strings.ContainsRune(s, '/') && (result < 0 || result > 10) {
		log.Printf("expression %q = %v outside expected ratio range [0, 10]", s, result)
	}
	return result
}

// arithmeticContext overlays numeric regex captures onto the lookup
// context so capture names can appear inside arithmetic expressions
// (for example "delta_pct / 100"). Non-numeric captures are skipped.
func arithmeticContext(ctx map[string]any, extracted map[string]string) map[string]any {
	if len(extracted) == 0 {
		return ctx
	}
	merged := make(map[string]any, len(ctx)+len(extracted))
	for k, v := range ctx {
		merged[k] = v
	}
	for k, raw := range extracted {
		if f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
			merged[k] = f
		}
	}
	return merged
}

// pathValue walks a dotted path through nested maps. Any absent
// segment resolves the whole path to nil.
func pathValue(ctx map[string]any, path string) any {
	var value any = ctx
	for _, part := range strings.Split(path, ".") {
		m, ok := value.(map[string]any)
		if !ok {
			return nil
		}
		value = m[part]
		if value == nil {
			return nil
		}
	}
	return value
}

// bracketValue resolves a plain base[key] lookup with no surrounding
// arithmetic. The key may itself name a context field (for example
// persona_min_savings[persona]); otherwise it is taken literally.
func bracketValue(ctx map[string]any, expr string) any {
	open := strings.IndexRune(expr, '[')
	closing := strings.IndexRune(expr, ']')
	if open < 0 || closing < open {
		return nil
	}
	base := strings.TrimSpace(expr[:open])
	key := strings.TrimSpace(expr[open+1 : closing])

	baseValue, ok := ctx[base]
	if !ok || baseValue == nil {
		return nil
	}
	key = resolveBracketKey(ctx, key)
	m, ok := baseValue.(map[string]any)
	if !ok {
		return nil
	}
	v, ok := m[key]
	if !ok {
		return nil
	}
	return v
}

func resolveBracketKey(ctx map[string]any, key string) string {
	kv := pathValue(ctx, key)
	if kv == nil {
		return key
	}
	if s, ok := kv.(string); ok {
		return s
	}
	return fmt.Sprint(kv)
}

// The arithmetic sub-language is deliberately small: numeric literals,
// identifiers (dotted paths allowed), bracket lookups, the four
// arithmetic operators, unary minus, and parentheses.
//
//	expr    = term { ("+" | "-") term }
//	term    = unary { ("*" | "/") unary }
//	unary   = "-" unary | primary
//	primary = number | ident [ "[" key "]" ] | "(" expr ")"
type arithParser struct {
	src string
	pos int
	ctx map[string]any
}

func evalArithmetic(expr string, ctx map[string]any) (float64, error) {
	p := &arithParser{src: expr, ctx: ctx}
	v, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return 0, fmt.Errorf("unexpected %q at offset %d", p.src[p.pos], p.pos)
	}
	return v, nil
}

func (p *arithParser) parseExpr() (float64, error) {
	v, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		switch p.peek() {
		case '+':
			p.pos++
			rhs, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			v += rhs
		case '-':
			p.pos++
			rhs, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			v -= rhs
		default:
			return v, nil
		}
	}
}

func (p *arithParser) parseTerm() (float64, error) {
	v, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		switch p.peek() {
		case '*':
			p.pos++
			rhs, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			v *= rhs
		case '/':
			p.pos++
			rhs, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			if rhs == 0 {
				return 0, fmt.Errorf("division by zero in %q", p.src)
			}
			v /= rhs
		default:
			return v, nil
		}
	}
}

func (p *arithParser) parseUnary() (float64, error) {
	p.skipSpace()
	if p.peek() == '-' {
		p.pos++
		v, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		return -v, nil
	}
	return p.parsePrimary()
}

func (p *arithParser) parsePrimary() (float64, error) {
	p.skipSpace()
	c := p.peek()
	switch {
	case c == '(':
		p.pos++
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		p.skipSpace()
		if p.peek() != ')' {
			return 0, fmt.Errorf("missing closing parenthesis in %q", p.src)
		}
		p.pos++
		return v, nil
	case c >= '0' && c <= '9' || c == '.':
		return p.parseNumber()
	case isIdentStart(c):
		return p.parseIdent()
	}
	return 0, fmt.Errorf("unexpected character %q in %q", c, p.src)
}

func (p *arithParser) parseNumber() (float64, error) {
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if (c >= '0' && c <= '9') || c == '.' {
			p.pos++
			continue
		}
		break
	}
	f, err := strconv.ParseFloat(p.src[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("bad number %q", p.src[start:p.pos])
	}
	return f, nil
}

func (p *arithParser) parseIdent() (float64, error) {
	start := p.pos
	for p.pos < len(p.src) && isIdentChar(p.src[p.pos]) {
		p.pos++
	}
	name := p.src[start:p.pos]

	p.skipSpace()
	if p.peek() == '[' {
		p.pos++
		keyStart := p.pos
		for p.pos < len(p.src) && p.src[p.pos] != ']' {
			p.pos++
		}
		if p.pos >= len(p.src) {
			return 0, fmt.Errorf("unterminated bracket in %q", p.src)
		}
		key := strings.TrimSpace(p.src[keyStart:p.pos])
		p.pos++
		return p.bracketNumber(name, key)
	}

	v := pathValue(p.ctx, name)
	if v == nil {
		return 0, fmt.Errorf("unknown identifier %q", name)
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, fmt.Errorf("identifier %q is not numeric", name)
	}
	return f, nil
}

// bracketNumber resolves base[key] inside arithmetic. A missing base
// or key yields 0 so that optional category data degrades to "no
// spend" instead of failing the whole expression; a present but
// non-numeric value is still an error.
func (p *arithParser) bracketNumber(base, key string) (float64, error) {
	baseValue, ok := p.ctx[base]
	if !ok || baseValue == nil {
		return 0, nil
	}
	key = resolveBracketKey(p.ctx, key)
	m, ok := baseValue.(map[string]any)
	if !ok {
		return 0, nil
	}
	v, ok := m[key]
	if !ok {
		return 0, nil
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, fmt.Errorf("%s[%s] is not numeric", base, key)
	}
	return f, nil
}

func (p *arithParser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *arithParser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9') || c == '.'
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// compareValues applies op to two resolved operands. Numbers compare
// numerically, strings lexicographically, booleans support equality
// only. Mismatched types compare false.
func compareValues(left any, op string, right any) bool {
	if lf, ok := toFloat(left); ok {
		if rf, ok := toFloat(right); ok {
			return compareOrdered(lf, op, rf)
		}
		return false
	}
	if ls, ok := left.(string); ok {
		if rs, ok := right.(string); ok {
			return compareOrdered(ls, op, rs)
		}
		return false
	}
	if lb, ok := left.(bool); ok {
		if rb, ok := right.(bool); ok {
			switch op {
			case "==":
				return lb == rb
			case "!=":
				return lb != rb
			}
		}
		return false
	}
	return false
}

func compareOrdered[T cmp.Ordered](left T, op string, right T) bool {
	switch op {
	case ">":
		return left > right
	case ">=":
		return left >= right
	case "<":
		return left < right
	case "<=":
		return left <= right
	case "==":
		return left == right
	case "!=":
		return left != right
	}
	log.Printf("unknown comparison operator %q", op)
	return false
}

// parseThresholdCondition splits a compact condition string such as
// ">= 0.5" into its operator and numeric threshold. Two-character
// operators are matched before their one-character prefixes.
func parseThresholdCondition(condition string) (string, float64, error) {
	condition = strings.TrimSpace(condition)
	ops := []string{">=", ">", "<=", "<", "==", "!="}
	for _, op := range ops {
		if !strings.HasPrefix(condition, op) {
			continue
		}
		threshold, err := strconv.ParseFloat(strings.TrimSpace(condition[len(op):]), 64)
		if err != nil {
			return "", 0, fmt.Errorf("bad threshold condition %q: %w", condition, err)
		}
		return op, threshold, nil
	}
	return "", 0, fmt.Errorf("unknown threshold condition format %q", condition)
}

// evalThresholdCondition tests a numeric metric against a compact
// condition string. Unparseable conditions are false.
func evalThresholdCondition(value float64, condition string) bool {
	op, threshold, err := parseThresholdCondition(condition)
	if err != nil {
		log.Printf("%v", err)
		return false
	}
	return compareOrdered(value, op, threshold)
}
