package filterlist

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/AdguardTeam/contentfilter/internal/ufnet"
	"github.com/AdguardTeam/contentfilter/rules"
	"github.com/AdguardTeam/golibs/errors"
)

const (
	maskAllowlist    = "@@"
	maskStartURL     = "||"
	maskRegexRule    = "/"
	abpHeader        = "[Adblock Plus"
	optionsDelimiter = '$'
	escapeCharacter  = '\\'
)

// errEmptyDomains is returned when $domain has no value.
const errEmptyDomains errors.Error = "empty domains"

// elementRuleRe matches the element hiding rules and their relatives:
// "example.org##.banner", "example.org#@#.banner", "example.org#?#div:has()".
var elementRuleRe = regexp.MustCompile(`^([^/|@"!]*?)#([@?$])?#(.+)$`)

// optionTypes are the content type modifiers.
var optionTypes = map[string]rules.ContentType{
	"other":          rules.TypeOther,
	"xbl":            rules.TypeOther,
	"dtd":            rules.TypeOther,
	"script":         rules.TypeScript,
	"image":          rules.TypeImage,
	"background":     rules.TypeImage,
	"stylesheet":     rules.TypeStylesheet,
	"css":            rules.TypeStylesheet,
	"subdocument":    rules.TypeSubdocument,
	"frame":          rules.TypeSubdocument,
	"document":       rules.TypeDocument,
	"doc":            rules.TypeDocument,
	"media":          rules.TypeMedia,
	"font":           rules.TypeFont,
	"popup":          rules.TypePopup,
	"websocket":      rules.TypeWebSocket,
	"xmlhttprequest": rules.TypeXHR,
	"xhr":            rules.TypeXHR,
	"all":            rules.TypeAll,
	"elemhide":       rules.TypeElementHide,
	"ehide":          rules.TypeElementHide,
	"generichide":    rules.TypeGenericHide,
	"ghide":          rules.TypeGenericHide,
	"genericblock":   rules.TypeGenericBlock,
}

// pageOnlyTypes are the types only allowlist rules may have.
const pageOnlyTypes = rules.TypeElementHide | rules.TypeGenericHide | rules.TypeGenericBlock

// unsupportedTypes are the content types requests never have here.  Rules
// only for them are skipped.
var unsupportedTypes = map[string]struct{}{
	"object":            {},
	"object-subrequest": {},
	"ping":              {},
	"popunder":          {},
	"webrtc":            {},
}

// DecodeABP decodes a line of an Adblock Plus filter list.  Comments and the
// header return no rules and no error.  A line can produce several rules, for
// example an element hiding rule for several domains.
func DecodeABP(line string, listID int) (rs []rules.Rule, err error) {
	line = strings.TrimSpace(line)
	if line == "" || line[0] == '!' || strings.HasPrefix(line, abpHeader) {
		return nil, nil
	}

	if m := elementRuleRe.FindStringSubmatch(line); m != nil {
		return decodeElementRule(line, m[1], m[2], m[3], listID)
	}

	return decodeNetworkRule(line, listID)
}

// decodeElementRule decodes an element hiding rule.  Exceptions for the
// negated domains of a rule with both kinds, "a.org,~b.a.org##.ad", keep the
// rule from applying to them.
func decodeElementRule(text, domains, typ, selector string, listID int) (rs []rules.Rule, err error) {
	selector = strings.TrimSpace(selector)
	if selector == "" || strings.HasPrefix(selector, "+js") {
		return nil, errors.Annotate(rules.ErrUnsupportedRule, "scriptlet %q: %w", text)
	}

	var isHide bool
	switch typ {
	case "":
		isHide = true
	case "@":
		if domains == "" {
			return nil, &rules.RuleSyntaxError{Msg: "generic element exception", RuleText: text}
		}
	default:
		return nil, errors.Annotate(rules.ErrUnsupportedRule, "extended css %q: %w", text)
	}

	var positive, negated []string
	for d := range strings.SplitSeq(domains, ",") {
		d = strings.TrimSpace(d)
		switch {
		case d == "":
			continue
		case d == "*":
			positive = append(positive, "")
		case d[0] == '~':
			negated = append(negated, d)
		default:
			positive = append(positive, d)
		}
	}

	// An exception can't be restricted by another exception, and negated
	// exceptions would together cover every host.
	if !isHide && len(positive) == 0 && len(negated) > 1 {
		return nil, errors.Annotate(rules.ErrUnsupportedRule, "several negated exception domains %q: %w", text)
	}

	// A single negated domain is kept as a negated filter.  Several ones
	// become a generic rule with exceptions, since every negated filter
	// applies on the domains of the others.
	if len(positive) == 0 && (len(negated) == 0 || (isHide && len(negated) > 1)) {
		positive = append(positive, "")
	}

	for _, d := range positive {
		rs = append(rs, rules.NewElementFilter(d, selector, text, listID, isHide))
	}

	for _, d := range negated {
		switch {
		case len(positive) == 0:
			rs = append(rs, rules.NewElementFilter(d, selector, text, listID, isHide))
		case isHide:
			rs = append(rs, rules.NewElementFilter(d[1:], selector, text, listID, false))
		}
	}

	return rs, nil
}

// networkRule is the intermediate state of decoding a network rule.
type networkRule struct {
	domains   *rules.DomainMap
	denyAllow []string

	text    string
	pattern string
	options string

	ct    rules.ContentType
	party rules.Party

	allow       bool
	ignoreCase  bool
	important   bool
	badFilter   bool
	unsupported bool
}

// decodeNetworkRule decodes a URL blocking or allowlist rule.
func decodeNetworkRule(text string, listID int) (rs []rules.Rule, err error) {
	nr := &networkRule{
		text:       text,
		ignoreCase: true,
		party:      rules.PartyAny,
	}

	nr.pattern, nr.options, nr.allow, err = parseRuleText(text)
	if err != nil {
		return nil, err
	}

	err = nr.loadOptions()
	if err != nil {
		return nil, fmt.Errorf("rule %q: %w", text, err)
	}

	f, err := nr.filter(listID)
	if err != nil {
		return nil, err
	}

	rs = append(rs, f)
	if len(nr.denyAllow) == 0 {
		return rs, nil
	}

	// $denyallow turns into allowlist rules for the listed request domains
	// with the same other modifiers.
	without := removeOption(text, "denyallow")
	_, opts, _, _ := parseRuleText(without)
	for _, d := range nr.denyAllow {
		allowText := maskAllowlist + maskStartURL + d + "^"
		if opts != "" {
			allowText += string(optionsDelimiter) + opts
		}

		var allowRules []rules.Rule
		allowRules, err = decodeNetworkRule(allowText, listID)
		if err != nil {
			return nil, err
		}

		rs = append(rs, allowRules...)
	}

	return rs, nil
}

// filter builds the compiled filter of nr.
func (nr *networkRule) filter(listID int) (f *rules.Filter, err error) {
	if nr.ct&pageOnlyTypes != 0 && !nr.allow {
		return nil, &rules.RuleSyntaxError{Msg: "page-level modifier in a blocking rule", RuleText: nr.text}
	}

	if len(nr.denyAllow) > 0 && !nr.domains.Include() {
		return nil, &rules.RuleSyntaxError{Msg: "$denyallow without $domain", RuleText: nr.text}
	}

	if nr.ct == 0 {
		if nr.unsupported {
			return nil, errors.Annotate(rules.ErrUnsupportedRule, "content types of %q: %w", nr.text)
		}

		nr.ct = rules.TypeAll
	}

	c := &rules.FilterConfig{
		Domains:     nr.domains,
		Text:        nr.text,
		ListID:      listID,
		ContentType: nr.ct,
		Party:       nr.party,
		IgnoreCase:  nr.ignoreCase,
		Allow:       nr.allow,
		Important:   nr.important,
		BadFilter:   nr.badFilter,
	}

	if nr.badFilter {
		c.Text = removeOption(nr.text, "badfilter")
	}

	c.Kind, c.Pattern = nr.kindPattern()

	return rules.NewFilter(c)
}

// kindPattern chooses the cheapest kind of the pattern test that matches the
// same URLs as the pattern.
func (nr *networkRule) kindPattern() (k rules.Kind, pattern string) {
	p := nr.pattern
	if p == "*" {
		p = ""
	}

	if len(p) >= 2 && strings.HasPrefix(p, maskRegexRule) && strings.HasSuffix(p, maskRegexRule) &&
		mayContainRegexChars(p) {
		return rules.KindRegex, p[1 : len(p)-1]
	}

	isStart := strings.HasPrefix(p, maskStartURL)
	isEnd := strings.HasSuffix(p, "^")

	content := p
	if isStart {
		content = content[len(maskStartURL):]
	}

	if isEnd && len(content) > 0 {
		content = content[:len(content)-1]
	}

	if strings.ContainsAny(content, "*^|") {
		return rules.KindPattern, p
	}

	switch {
	case isStart && isEnd:
		return rules.KindStartEnd, content
	case isStart:
		return rules.KindStartsWith, content
	case isEnd:
		return rules.KindEndsWith, content
	case nr.text == content && ufnet.ExtractHostname("http://"+content) == content:
		// A bare hostname blocks the whole site, as in hosts files.
		return rules.KindStartEnd, content
	default:
		return rules.KindContains, content
	}
}

// mayContainRegexChars returns true if a pattern in slashes uses any regular
// expression syntax, so that "/ads/" remains a path substring.
func mayContainRegexChars(p string) (ok bool) {
	for i := range len(p) {
		c := p[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '%', c == '/', c == '_', c == '-':
		default:
			return true
		}
	}

	return false
}

// loadOptions loads all the modifiers of the rule.
func (nr *networkRule) loadOptions() (err error) {
	if nr.options == "" {
		return nil
	}

	for _, option := range splitWithEscapeCharacter(nr.options, ',', escapeCharacter, false) {
		name, value, _ := strings.Cut(option, "=")
		if name == "" || strings.Trim(name, "_") == "" {
			continue
		}

		inverse := name[0] == '~'
		if inverse {
			name = name[1:]
		}

		err = nr.loadOption(strings.ToLower(name), value, inverse)
		if err != nil {
			return err
		}
	}

	return nil
}

// loadOption loads a modifier with its value, which may be empty.
func (nr *networkRule) loadOption(name, value string, inverse bool) (err error) {
	if t, ok := optionTypes[name]; ok {
		nr.setContentType(t, inverse)

		return nil
	}

	if _, ok := unsupportedTypes[name]; ok {
		nr.unsupported = nr.unsupported || !inverse

		return nil
	}

	switch name {
	case "match-case":
		nr.ignoreCase = inverse
	case "third-party", "3p":
		nr.party = pickParty(inverse, rules.PartyFirst, rules.PartyThird)
	case "first-party", "1p":
		nr.party = pickParty(inverse, rules.PartyThird, rules.PartyFirst)
	case "strict3p":
		nr.party = pickParty(inverse, rules.PartyStrictFirst, rules.PartyStrictThird)
	case "strict1p":
		nr.party = pickParty(inverse, rules.PartyStrictThird, rules.PartyStrictFirst)
	case "important":
		nr.important = true
	case "badfilter":
		nr.badFilter = true
	case "sitekey":
		// Sitekeys are never sent, so ignore them.
	case "domain", "from":
		nr.domains, err = parseDomains(value, '|')
	case "denyallow":
		nr.denyAllow, err = parseDenyAllow(value)
	case "redirect", "empty":
		// Redirect resources aren't served, so just block.
	case "mp4":
		nr.setContentType(rules.TypeMedia, false)
	default:
		return fmt.Errorf("modifier %q: %w", name, rules.ErrUnsupportedRule)
	}

	return err
}

// setContentType adds t to the content types of the rule, or removes it if
// inverse is true.
func (nr *networkRule) setContentType(t rules.ContentType, inverse bool) {
	if !inverse {
		nr.ct |= t

		return
	}

	if nr.ct == 0 {
		nr.ct = rules.TypeAll
	}

	nr.ct &^= t
}

// pickParty returns inverted if inverse is true, otherwise direct.
func pickParty(inverse bool, inverted, direct rules.Party) (p rules.Party) {
	if inverse {
		return inverted
	}

	return direct
}

// parseDomains parses the value of $domain, "a.org|~b.a.org".  m is nil if
// there are no domains.
func parseDomains(value string, sep byte) (m *rules.DomainMap, err error) {
	if value == "" {
		return nil, errEmptyDomains
	}

	var entries []rules.DomainEntry
	for d := range strings.SplitSeq(strings.ToLower(value), string(sep)) {
		d = strings.TrimSpace(d)
		include := true
		if strings.HasPrefix(d, "~") {
			include = false
			d = d[1:]
		}

		if d == "" {
			continue
		}

		entries = append(entries, rules.DomainEntry{Domain: d, Include: include})
	}

	return rules.NewDomainMap(entries), nil
}

// parseDenyAllow parses the value of $denyallow, which only lists plain
// domains.
func parseDenyAllow(value string) (domains []string, err error) {
	if value == "" || strings.ContainsAny(value, "*~") {
		return nil, fmt.Errorf("bad $denyallow value %q", value)
	}

	for d := range strings.SplitSeq(strings.ToLower(value), "|") {
		if d != "" {
			domains = append(domains, d)
		}
	}

	return domains, nil
}

// parseRuleText splits the rule text in multiple parts:
// pattern -- a basic rule pattern (which can be easily converted into a regex)
// options -- a string with all rule options
// allow -- indicates if rule is "allowlist" (e.g. it should unblock requests, not block them)
func parseRuleText(ruleText string) (pattern, options string, allow bool, err error) {
	startIndex := 0
	if strings.HasPrefix(ruleText, maskAllowlist) {
		allow = true
		startIndex = len(maskAllowlist)
	}

	if len(ruleText) <= startIndex {
		return "", "", false, &rules.RuleSyntaxError{Msg: "the rule is too short", RuleText: ruleText}
	}

	// Setting pattern to rule text (for the case of empty options)
	pattern = ruleText[startIndex:]

	// Avoid parsing options inside of a regex rule
	if strings.HasPrefix(pattern, maskRegexRule) && strings.HasSuffix(pattern, maskRegexRule) {
		return pattern, "", allow, nil
	}

	foundEscaped := false
	for i := len(ruleText) - 2; i >= startIndex; i-- {
		if ruleText[i] != optionsDelimiter {
			continue
		}

		if i > startIndex && ruleText[i-1] == escapeCharacter {
			foundEscaped = true

			continue
		}

		pattern = ruleText[startIndex:i]
		options = ruleText[i+1:]
		if foundEscaped {
			options = strings.ReplaceAll(options, `\$`, string(optionsDelimiter))
		}

		break
	}

	return pattern, options, allow, nil
}

// removeOption returns the rule text without the modifier name, with or
// without a value.  The options delimiter is removed if no modifiers are left.
func removeOption(ruleText, name string) (text string) {
	_, options, _, err := parseRuleText(ruleText)
	if err != nil || options == "" {
		return ruleText
	}

	prefix := ruleText[:len(ruleText)-len(options)-1]

	var kept []string
	for _, o := range strings.Split(options, ",") {
		n, _, _ := strings.Cut(o, "=")
		if n != name {
			kept = append(kept, o)
		}
	}

	if len(kept) == 0 {
		return prefix
	}

	return prefix + string(optionsDelimiter) + strings.Join(kept, ",")
}

// splitWithEscapeCharacter splits string by the specified separator if it is not escaped
func splitWithEscapeCharacter(str string, sep, escapeCharacter byte, preserveAllTokens bool) []string {
	parts := make([]string, 0)

	if str == "" {
		return parts
	}

	var sb strings.Builder
	escaped := false
	for i := range str {
		c := str[i]

		if c == escapeCharacter {
			escaped = true
		} else if c == sep {
			if escaped {
				sb.WriteByte(c)
				escaped = false
			} else {
				if preserveAllTokens || sb.Len() > 0 {
					parts = append(parts, sb.String())
					sb.Reset()
				}
			}
		} else {
			if escaped {
				escaped = false
				sb.WriteByte(escapeCharacter)
			}
			sb.WriteByte(c)
		}
	}

	if preserveAllTokens || sb.Len() > 0 {
		parts = append(parts, sb.String())
	}

	return parts
}
