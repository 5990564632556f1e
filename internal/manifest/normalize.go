package manifest

import "strings"

// typeBuckets is checked in order; the first bucket containing a matching
// token wins. The ordering matters: "bigint" must resolve via the integer
// bucket before anything else gets a look at it.
var typeBuckets = []struct {
	tokens []string
	out    CanonicalType
}{
	{[]string{"varchar", "char", "text", "string"}, TypeString},
	{[]string{"int", "integer", "smallint", "bigint"}, TypeLong},
	{[]string{"decimal", "numeric"}, TypeDecimal},
	{[]string{"float", "double", "real"}, TypeDouble},
	{[]string{"bool"}, TypeBoolean},
	{[]string{"date"}, TypeDate},
	{[]string{"timestamp"}, TypeTimestamp},
}

// NormalizeType maps a source-platform type name onto the canonical set.
// The match is a case-insensitive substring check; unrecognized types
// default to string.
func NormalizeType(raw string) CanonicalType {
	lower := strings.ToLower(raw)
	for _, bucket := range typeBuckets {
		for _, token := range bucket.tokens {
			if strings.Contains(lower, token) {
				return bucket.out
			}
		}
	}
	return TypeString
}

// structuralTokens identify column types the remote job cannot process at
// all. Columns with these types are dropped from the manifest and reported
// as unsupported.
var structuralTokens = []string{"array", "struct", "map<", "binary", "variant", "interval"}

// IsStructuralType reports whether a source type is a nested/binary type
// excluded from manifests.
func IsStructuralType(raw string) bool {
	lower := strings.ToLower(raw)
	for _, token := range structuralTokens {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}
