package recognition

// commonTypos maps frequently misspelled terms found in the literature to
// their correct spellings.  When a token matches a key, the lookup is retried
// with each corrected spelling until one hits.
var commonTypos = map[string][]string{
	"Multiple Mitochondrial Dysfunctions Syndromes": {"Multiple Mitochondrial Dysfunctions Syndrome"},
	"S-Phase kinase associated protein 2":           {"S-Phase kinase-associated protein 2"},
}

// speciesStopwords suppresses species lookups for terms that collide with
// everyday words or with disease names.  Species matching skips the general
// stopword list and uses this set instead.
var speciesStopwords = map[string]struct{}{
	"artificial": {},
	"collection": {},
	"covid-19":   {},
	"covid19":    {},
}
