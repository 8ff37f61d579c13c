// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"sort"
	"strings"

	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"
)

// fuzzyResult is the outcome of matching one string. Score is zero
// when the pattern did not match; Positions are rune offsets of the
// matched characters in ascending order.
type fuzzyResult struct {
	Score     int
	Positions []int
}

// fuzzyMatch matches pattern against text case-insensitively with
// fzf's v2 algorithm. The slab may be nil; passing one reuses scratch
// memory across calls.
func fuzzyMatch(text string, pattern []rune, slab *util.Slab) fuzzyResult {
	if len(pattern) == 0 {
		return fuzzyResult{}
	}
	lowered := []rune(strings.ToLower(string(pattern)))
	chars := util.ToChars([]byte(strings.ToLower(text)))
	result, positions := algo.FuzzyMatchV2(false, true, true, &chars, lowered, true, slab)
	if result.Start < 0 || result.Score <= 0 {
		return fuzzyResult{}
	}
	var matched []int
	if positions != nil {
		matched = append(matched, *positions...)
		sort.Ints(matched)
	}
	return fuzzyResult{Score: result.Score, Positions: matched}
}
