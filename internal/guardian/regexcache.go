package guardian

import (
	"regexp"
	"sync"
)

// Tenant blocked-pattern expressions are compiled once and reused across
// evaluations. The cache only ever holds operator-authored expressions that
// passed validation at Set time, so it stays small.
var reCache sync.Map // string -> *regexp.Regexp

func regexpCompileCached(expr string) (*regexp.Regexp, error) {
	if v, ok := reCache.Load(expr); ok {
		return v.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	reCache.Store(expr, re)
	return re, nil
}
