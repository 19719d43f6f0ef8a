package ingest

import (
	"regexp"
	"strings"
)

// reTicker matches candidate ticker symbols: 1-6 uppercase letters with an
// optional exchange suffix such as ".NS" or ".HK".
var reTicker = regexp.MustCompile(`\b[A-Z]{1,6}(?:\.[A-Z]{1,3})?\b`)

// exchangeSuffixes is the set of supported exchange suffixes.  A dotted
// candidate with an unknown suffix is discarded entirely rather than falling
// back to its base symbol; partial matches produce false positives.
var exchangeSuffixes = map[string]bool{
	"NS": true, // NSE India
	"BO": true, // BSE India
	"L":  true, // London
	"TO": true, // Toronto
	"HK": true, // Hong Kong
	"SS": true, // Shanghai
	"SZ": true, // Shenzhen
	"T":  true, // Tokyo
	"KS": true, // Korea
	"AX": true, // Australia
	"DE": true, // Xetra
	"PA": true, // Paris
	"SW": true, // Switzerland
	"SI": true, // Singapore
}

// tickerStopwords are uppercase tokens that look like tickers but are common
// English words, finance acronyms, currencies, or institutions.  Filtering is
// EXACT match on the whole token: a stopword appearing as a substring of a
// real symbol (or as the base of a suffixed symbol like "ON.NS") never
// suppresses the symbol.
var tickerStopwords = map[string]bool{
	// common words
	"A": true, "I": true, "AN": true, "AND": true, "ARE": true, "AS": true,
	"AT": true, "BE": true, "BY": true, "FOR": true, "HAS": true, "IN": true,
	"IS": true, "IT": true, "NEW": true, "NO": true, "NOT": true, "OF": true,
	"ON": true, "OR": true, "OUR": true, "SO": true, "THE": true, "TO": true,
	"UP": true, "WE": true, "WILL": true, "WITH": true,
	// roles and ratings
	"CEO": true, "CFO": true, "COO": true, "CTO": true, "CIO": true,
	"BUY": true, "SELL": true, "HOLD": true,
	// finance acronyms
	"IPO": true, "GDP": true, "CPI": true, "EPS": true, "PE": true,
	"PB": true, "ROE": true, "ROI": true, "ROCE": true, "EBIT": true,
	"PAT": true, "YOY": true, "QOQ": true, "FY": true, "CAGR": true,
	"CAPEX": true, "OPEX": true, "DCF": true, "NAV": true, "AUM": true,
	"ETF": true, "ESG": true, "AI": true, "US": true, "UK": true, "EU": true,
	// currencies and institutions
	"USD": true, "EUR": true, "INR": true, "GBP": true, "JPY": true,
	"CNY": true, "SEC": true, "FED": true, "RBI": true, "ECB": true,
	"NSE": true, "BSE": true, "LSE": true, "NYSE": true, "NASDAQ": true,
	// indices
	"NIFTY": true, "SENSEX": true, "KOSPI": true, "DAX": true, "FTSE": true,
}

// ExtractTickers returns the distinct ticker symbols mentioned in text, in
// first-occurrence order.  Extraction is exact-match:
//   - suffixed candidates ("INFY.NS") are kept when the suffix is a known
//     exchange code,
//   - bare candidates must be 2-6 letters and not be a stopword.
func ExtractTickers(text string) []string {
	candidates := reTicker.FindAllString(text, -1)

	seen := make(map[string]bool, len(candidates))
	var out []string
	for _, c := range candidates {
		if !acceptTicker(c) || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

func acceptTicker(candidate string) bool {
	if base, suffix, ok := strings.Cut(candidate, "."); ok {
		return exchangeSuffixes[suffix] && len(base) >= 1 && !tickerStopwords[candidate]
	}
	if len(candidate) < 2 {
		return false
	}
	return !tickerStopwords[candidate]
}
