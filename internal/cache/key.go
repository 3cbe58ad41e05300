package cache

import (
	"fmt"
	"strings"
)

// Key identifies one cacheable request. Keys with the same name and equal
// parameters of the same dynamic type address the same entry; int 60, int64
// 60 and the string "60" are three different parameters.
type Key struct {
	name   string
	params []any
	id     string
}

func NewKey(name string, params ...any) Key {
	reprs := make([]string, len(params))
	for i, p := range params {
		reprs[i] = fmt.Sprintf("%T:%#v", p, p)
	}

	return Key{
		name:   name,
		params: append([]any(nil), params...),
		id:     name + "(" + strings.Join(reprs, ",") + ")",
	}
}

func (k Key) Name() string {
	return k.name
}

func (k Key) Params() []any {
	return append([]any(nil), k.params...)
}

func (k Key) Equal(other Key) bool {
	return k.id == other.id
}

func (k Key) String() string {
	return k.id
}
