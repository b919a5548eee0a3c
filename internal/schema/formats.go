package schema

import (
	"net/netip"
	"net/url"
	"regexp"
	"time"
)

// Format names understood by the validator.
const (
	FormatDate            = "date"
	FormatDateTime        = "date-time"
	FormatEmail           = "email"
	FormatURI             = "uri"
	FormatIPv4            = "ipv4"
	FormatHex             = "hex"
	FormatBase64          = "base64"
	FormatUUID            = "uuid"
	FormatEthereumAddress = "ethereum-address"
	FormatTransactionHash = "transaction-hash"
)

var (
	emailRegex   = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	hexRegex     = regexp.MustCompile(`^[0-9a-fA-F]+$`)
	base64Regex  = regexp.MustCompile(`^[a-zA-Z0-9+/]+=*$`)
	uuidRegex    = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[1-5][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)
	addressRegex = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)
	txHashRegex  = regexp.MustCompile(`^0x[a-fA-F0-9]{64}$`)
)

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

var formatCheckers = map[string]func(string) bool{
	FormatDate:            isDateLike,
	FormatDateTime:        isDateLike,
	FormatEmail:           emailRegex.MatchString,
	FormatURI:             isURI,
	FormatIPv4:            isIPv4,
	FormatHex:             hexRegex.MatchString,
	FormatBase64:          base64Regex.MatchString,
	FormatUUID:            uuidRegex.MatchString,
	FormatEthereumAddress: addressRegex.MatchString,
	FormatTransactionHash: txHashRegex.MatchString,
}

// CheckFormat reports whether value satisfies format. Unknown formats accept
// every value; known formats reject non-string values.
func CheckFormat(value any, format string) bool {
	check, ok := formatCheckers[format]
	if !ok {
		return true
	}
	s, ok := value.(string)
	if !ok {
		return false
	}
	return check(s)
}

// isDateLike accepts calendar dates and date-times, with or without zone,
// for both the date and date-time formats.
func isDateLike(s string) bool {
	if _, err := time.Parse("2006-01-02", s); err == nil {
		return true
	}
	for _, layout := range dateTimeLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

func isURI(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return u.Scheme != "" && (u.Host != "" || u.Opaque != "" || u.Path != "")
}

func isIPv4(s string) bool {
	addr, err := netip.ParseAddr(s)
	return err == nil && addr.Is4()
}
