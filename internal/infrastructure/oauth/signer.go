// Package oauth implements the two-legged OAuth 1.0 request signing used by
// the publishing network: HMAC-SHA1 over a canonical base string built from
// the request method, URL and parameters.
package oauth

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Credentials is the consumer key/secret plus token/secret pair.
type Credentials struct {
	ConsumerKey    string
	ConsumerSecret string
	Token          string
	TokenSecret    string
}

// Signer produces Authorization header values. It is pure apart from the
// nonce and clock, both injectable so signatures are reproducible in tests.
type Signer struct {
	creds Credentials
	nonce func() string
	now   func() time.Time
}

// NewSigner builds a production signer with a random nonce and wall clock.
func NewSigner(creds Credentials) *Signer {
	return &Signer{
		creds: creds,
		nonce: func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") },
		now:   time.Now,
	}
}

// NewSignerWithSources injects the nonce and clock; nil falls back to the
// production sources.
func NewSignerWithSources(creds Credentials, nonce func() string, now func() time.Time) *Signer {
	s := NewSigner(creds)
	if nonce != nil {
		s.nonce = nonce
	}
	if now != nil {
		s.now = now
	}
	return s
}

// Header returns the OAuth Authorization header value for one request.
// extra carries the query/body parameters that participate in signing; the
// header itself lists only the oauth_* protocol parameters.
func (s *Signer) Header(method, rawURL string, extra map[string]string) string {
	oauthParams := map[string]string{
		"oauth_consumer_key":     s.creds.ConsumerKey,
		"oauth_nonce":            s.nonce(),
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_timestamp":        strconv.FormatInt(s.now().Unix(), 10),
		"oauth_token":            s.creds.Token,
		"oauth_version":          "1.0",
	}

	all := make(map[string]string, len(oauthParams)+len(extra))
	for k, v := range oauthParams {
		all[k] = v
	}
	for k, v := range extra {
		all[k] = v
	}

	oauthParams["oauth_signature"] = s.sign(method, rawURL, all)

	keys := make([]string, 0, len(oauthParams))
	for k := range oauthParams {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, percentEncode(k)+`="`+percentEncode(oauthParams[k])+`"`)
	}
	return "OAuth " + strings.Join(parts, ", ")
}

func (s *Signer) sign(method, rawURL string, params map[string]string) string {
	base := baseString(method, rawURL, params)
	key := percentEncode(s.creds.ConsumerSecret) + "&" + percentEncode(s.creds.TokenSecret)

	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// baseString canonicalizes the request: encoded parameters sorted by encoded
// key (then encoded value), joined with '&', prefixed by the uppercase method
// and the encoded URL.
func baseString(method, rawURL string, params map[string]string) string {
	type pair struct{ k, v string }

	encoded := make([]pair, 0, len(params))
	for k, v := range params {
		encoded = append(encoded, pair{percentEncode(k), percentEncode(v)})
	}
	sort.Slice(encoded, func(i, j int) bool {
		if encoded[i].k != encoded[j].k {
			return encoded[i].k < encoded[j].k
		}
		return encoded[i].v < encoded[j].v
	})

	joined := make([]string, 0, len(encoded))
	for _, p := range encoded {
		joined = append(joined, p.k+"="+p.v)
	}

	return strings.ToUpper(method) + "&" + percentEncode(rawURL) + "&" + percentEncode(strings.Join(joined, "&"))
}

// percentEncode applies RFC 3986 encoding with the unreserved set
// [A-Za-z0-9-._~] left literal; everything else becomes %XX uppercase hex.
func percentEncode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9',
			c == '-', c == '.', c == '_', c == '~':
			b.WriteByte(c)
		default:
			b.WriteString("%" + upperHex(c))
		}
	}
	return b.String()
}

func upperHex(c byte) string {
	const digits = "0123456789ABCDEF"
	return string([]byte{digits[c>>4], digits[c&0x0f]})
}
