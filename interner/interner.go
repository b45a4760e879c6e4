// Copyright 2026 The Ortho Authors
// This file is part of ortho.
//
// ortho is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// ortho is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.

// Package interner owns the token <-> dense-index table and the
// phrase-completion index used to answer "which tokens can legally
// extend this prefix" queries during branch-and-bound expansion.
package interner

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/michaelrauh/ortho/internal/bitset"
)

// Token is a dense non-negative integer token id. Assignment is stable
// within one Interner version; a version bump may renumber.
type Token uint32

var sentenceSplit = regexp.MustCompile(`[.?;!]+`)
var paragraphSplit = regexp.MustCompile(`\n\s*\n`)
var wordSplit = regexp.MustCompile(`\s+`)

// Interner holds the ordered token table and the phrase-prefix ->
// completion-set index (spec.md §3, §4.1).
type Interner struct {
	mu      sync.RWMutex
	tokens  []string
	byToken map[string]Token
	version uint64

	// phraseIndex maps an encoded prefix (possibly empty) to the set of
	// tokens that are observed to follow it somewhere in the corpus.
	phraseIndex map[string]*bitset.Set
}

// New returns an empty Interner at version 0.
func New() *Interner {
	return &Interner{
		byToken:     make(map[string]Token),
		phraseIndex: make(map[string]*bitset.Set),
	}
}

// Version returns the current Interner version.
func (in *Interner) Version() uint64 {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.version
}

// VocabularySize returns the number of distinct tokens known so far.
func (in *Interner) VocabularySize() int {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return len(in.tokens)
}

// TokenOf returns the token for a string, if known.
func (in *Interner) TokenOf(s string) (Token, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	t, ok := in.byToken[s]
	return t, ok
}

// StringOf returns the string a token denotes. Panics on an out-of-range
// token, which indicates a caller is using a stale version's numbering.
func (in *Interner) StringOf(t Token) string {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.tokens[t]
}

func splitSentences(text string) []string {
	var out []string
	for _, para := range paragraphSplit.Split(text, -1) {
		for _, sent := range sentenceSplit.Split(para, -1) {
			sent = strings.TrimSpace(sent)
			if sent != "" {
				out = append(out, sent)
			}
		}
	}
	return out
}

func splitWords(sentence string) []string {
	var out []string
	for _, w := range wordSplit.Split(strings.TrimSpace(sentence), -1) {
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}

// internLocked returns the token for s, creating a new one (and marking
// the vocabulary as changed) if s is unknown. Caller must hold in.mu.
func (in *Interner) internLocked(s string) (Token, bool) {
	if t, ok := in.byToken[s]; ok {
		return t, false
	}
	t := Token(len(in.tokens))
	in.tokens = append(in.tokens, s)
	in.byToken[s] = t
	return t, true
}

// InternText updates the vocabulary and phrase index from sentences found
// in text by splitting on paragraph breaks then on `. ? ; !` (spec.md
// §4.1). It returns the set of tokens newly created by this call (the
// "impacted tokens" used by callers deciding what must be remapped) and
// whether the Interner version changed.
func (in *Interner) InternText(text string) (impacted []Token, changed bool) {
	in.mu.Lock()
	defer in.mu.Unlock()

	seen := map[Token]bool{}
	for _, sentence := range splitSentences(text) {
		words := splitWords(sentence)
		if len(words) == 0 {
			continue
		}
		toks := make([]Token, len(words))
		for i, w := range words {
			t, isNew := in.internLocked(w)
			toks[i] = t
			if isNew {
				changed = true
				seen[t] = true
			}
		}
		for start := 0; start < len(toks); start++ {
			for i := start; i <= len(toks); i++ {
				prefix := toks[start:i]
				key := encodePrefix(prefix)
				set, ok := in.phraseIndex[key]
				if !ok {
					set = bitset.New()
					in.phraseIndex[key] = set
				}
				if i < len(toks) {
					if !set.Contains(uint32(toks[i])) {
						set.Add(uint32(toks[i]))
						changed = true
					}
				}
			}
		}
	}
	if changed {
		in.version++
	}
	out := make([]Token, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	return out, changed
}

// Completions returns the set of tokens t such that prefix++[t] occurs as
// a contiguous phrase in some ingested sentence. The empty prefix returns
// the set of tokens that start any phrase.
func (in *Interner) Completions(prefix []Token) *bitset.Set {
	in.mu.RLock()
	defer in.mu.RUnlock()
	set, ok := in.phraseIndex[encodePrefix(prefix)]
	if !ok {
		return bitset.New()
	}
	return set.Clone()
}

// Intersect computes (intersection of completions(p) for p in required)
// minus (union of completions(f) for f in forbidden). An empty required
// slice is never passed by the worker (every extension point has at
// least the primary-axis line as a required prefix); if one is passed,
// the result is the empty set.
func (in *Interner) Intersect(required, forbidden [][]Token) *bitset.Set {
	in.mu.RLock()
	defer in.mu.RUnlock()

	if len(required) == 0 {
		return bitset.New()
	}

	var result *bitset.Set
	for _, p := range required {
		set, ok := in.phraseIndex[encodePrefix(p)]
		if !ok {
			// Logic violation per spec.md §7: treat as empty completion.
			return bitset.New()
		}
		if result == nil {
			result = set.Clone()
		} else {
			result.And(set)
		}
		if result.IsEmpty() {
			return result
		}
	}
	for _, f := range forbidden {
		if set, ok := in.phraseIndex[encodePrefix(f)]; ok {
			result.AndNot(set)
		}
	}
	return result
}

// Remap produces the renumbering that must be applied to any Ortho built
// under an older version after a vocabulary-changing Ingest. Tokens
// unaffected by the renumbering map to themselves; the mapping is an
// identity map in the common case where new tokens were only appended
// (append-only growth never disturbs existing indices), but the explicit
// map is still returned so callers never need to assume that invariant.
func (in *Interner) Remap() map[Token]Token {
	in.mu.RLock()
	defer in.mu.RUnlock()
	m := make(map[Token]Token, len(in.tokens))
	for i := range in.tokens {
		m[Token(i)] = Token(i)
	}
	return m
}

// PhraseEntry is one phrase_index row, exported for snapshot encoding
// (spec.md §6).
type PhraseEntry struct {
	Prefix      []Token
	Completions *bitset.Set
}

// ExportAll returns the full state needed to serialize the Interner:
// the ordered token table, the current version, and every phrase-index
// entry. Entries are returned in an arbitrary but stable-per-call order;
// callers that need determinism (e.g. the snapshot codec) sort them.
func (in *Interner) ExportAll() (tokens []string, version uint64, entries []PhraseEntry) {
	in.mu.RLock()
	defer in.mu.RUnlock()

	tokens = append([]string(nil), in.tokens...)
	version = in.version
	entries = make([]PhraseEntry, 0, len(in.phraseIndex))
	for key, set := range in.phraseIndex {
		entries = append(entries, PhraseEntry{Prefix: decodePrefix(key), Completions: set.Clone()})
	}
	return tokens, version, entries
}

// LoadSnapshot reconstructs an Interner from previously exported state
// (spec.md §6 "Frontier out / resume in").
func LoadSnapshot(tokens []string, version uint64, entries []PhraseEntry) *Interner {
	in := New()
	in.tokens = append([]string(nil), tokens...)
	in.byToken = make(map[string]Token, len(tokens))
	for i, s := range tokens {
		in.byToken[s] = Token(i)
	}
	in.version = version
	for _, e := range entries {
		in.phraseIndex[encodePrefix(e.Prefix)] = e.Completions.Clone()
	}
	return in
}

func decodePrefix(key string) []Token {
	if key == "" {
		return nil
	}
	parts := strings.Split(strings.TrimSuffix(key, "|"), "|")
	out := make([]Token, 0, len(parts))
	for _, p := range parts {
		var v uint32
		fmt.Sscanf(p, "%08x", &v)
		out = append(out, Token(v))
	}
	return out
}

func encodePrefix(prefix []Token) string {
	var b strings.Builder
	b.Grow(len(prefix) * 5)
	for _, t := range prefix {
		fmt.Fprintf(&b, "%08x|", uint32(t))
	}
	return b.String()
}
