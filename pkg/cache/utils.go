package cache

import (
	"fmt"
	"strings"
	"time"
)

// GenerateKey joins a prefix and an id: "fundamentals:AAPL".
func GenerateKey(prefix, id string) string {
	return prefix + ":" + id
}

// GenerateKeyWithParams joins prefix and params with ':'. Times render as
// RFC3339 in UTC, string slices as a comma list and the zero time as "latest".
func GenerateKeyWithParams(prefix string, params ...interface{}) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, p := range params {
		b.WriteByte(':')
		switch v := p.(type) {
		case time.Time:
			if v.IsZero() {
				b.WriteString("latest")
			} else {
				b.WriteString(v.UTC().Format(time.RFC3339))
			}
		case []string:
			b.WriteString(strings.Join(v, ","))
		default:
			fmt.Fprint(&b, v)
		}
	}
	return b.String()
}
