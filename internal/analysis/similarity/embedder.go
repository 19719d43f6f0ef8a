package similarity

import (
	"context"
	"hash/fnv"
	"regexp"
	"strings"
)

// Embedder produces a dense vector for a normalised document.  The production
// implementation is the HTTP client in internal/infrastructure/embedding; the
// LexicalEmbedder below is the in-process fallback.
//
// Vectors are versioned by ModelID: vectors from different models never share
// an index namespace, so swapping the embedding model re-embeds rather than
// comparing incompatible spaces.
type Embedder interface {
	Embed(ctx context.Context, text string) (Vector, error)
	Dimension() int
	ModelID() string
}

// lexicalDimension is the fixed hash-bucket count of the fallback vector
// space.  Large enough that word-trigram collisions stay rare for
// report-sized documents.
const lexicalDimension = 4096

// lexicalModelID names the fallback vector namespace.
const lexicalModelID = "lexical-trigram-v1"

var lexicalTokenPattern = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)

// LexicalEmbedder is the deterministic in-process fallback used when the
// embedding service is down.  It hashes word trigrams into a fixed-dimension
// TF vector and L2-normalises, so the cosine of two lexical vectors
// approximates the n-gram overlap of the underlying texts.  Matches found
// this way are flagged lower-confidence by the analyzer.
type LexicalEmbedder struct{}

// NewLexicalEmbedder constructs the fallback embedder.  It is stateless and
// safe for concurrent use.
func NewLexicalEmbedder() *LexicalEmbedder {
	return &LexicalEmbedder{}
}

func (e *LexicalEmbedder) Dimension() int  { return lexicalDimension }
func (e *LexicalEmbedder) ModelID() string { return lexicalModelID }

// Embed never fails and ignores ctx; it exists to satisfy the Embedder
// contract so the analyzer can treat both paths uniformly.
func (e *LexicalEmbedder) Embed(_ context.Context, text string) (Vector, error) {
	tokens := lexicalTokenPattern.FindAllString(strings.ToLower(text), -1)

	vec := make(Vector, lexicalDimension)
	if len(tokens) < 3 {
		// Too short for trigrams; fall back to unigram hashing.
		for _, tok := range tokens {
			vec[bucket(tok)]++
		}
		return vec.Normalize(), nil
	}

	for i := 0; i+2 < len(tokens); i++ {
		gram := tokens[i] + " " + tokens[i+1] + " " + tokens[i+2]
		vec[bucket(gram)]++
	}
	return vec.Normalize(), nil
}

func bucket(s string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum32() % lexicalDimension)
}
