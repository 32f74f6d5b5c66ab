package gateway

import (
	"net/url"
	"strconv"
	"strings"
)

// Params 是有序的请求参数。签名覆盖的是实际发送的字节，所以顺序必须与添加顺序一致，
// 不能用 url.Values（Encode 会按 key 排序）。
type Params struct {
	keys   []string
	values []string
}

func NewParams() *Params {
	return &Params{}
}

// Add 追加参数；空值会被跳过。
func (p *Params) Add(key, value string) *Params {
	if value == "" {
		return p
	}
	p.keys = append(p.keys, key)
	p.values = append(p.values, value)
	return p
}

func (p *Params) AddInt(key string, value int64) *Params {
	return p.Add(key, strconv.FormatInt(value, 10))
}

func (p *Params) Len() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

// Encode 按添加顺序输出 k=v&k=v。
func (p *Params) Encode() string {
	if p == nil || len(p.keys) == 0 {
		return ""
	}
	var b strings.Builder
	for i, k := range p.keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.values[i]))
	}
	return b.String()
}
