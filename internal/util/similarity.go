package util

// SimilarityRatio computes a Ratcliff/Obershelp-style ratio in [0,1]:
// 2*M / (len(a)+len(b)), where M is the total length of matching
// blocks found by recursively taking the longest common substring and
// descending into the unmatched remainders on either side. This is the
// same algorithm difflib.SequenceMatcher.ratio() implements, matching
// what the Fusion Matcher and Identifier Extractor's reference
// implementation used for text-similarity scoring.
func SimilarityRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 && len(rb) == 0 {
		return 1.0
	}
	matches := matchingBlocks(ra, rb)
	return 2 * float64(matches) / float64(len(ra)+len(rb))
}

func matchingBlocks(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	i, j, size := longestMatch(a, b)
	if size == 0 {
		return 0
	}
	total := size
	total += matchingBlocks(a[:i], b[:j])
	total += matchingBlocks(a[i+size:], b[j+size:])
	return total
}

// longestMatch returns the start indices and length of the longest
// common contiguous substring of a and b.
func longestMatch(a, b []rune) (int, int, int) {
	bIndex := make(map[rune][]int, len(b))
	for idx, r := range b {
		bIndex[r] = append(bIndex[r], idx)
	}

	bestI, bestJ, bestSize := 0, 0, 0
	// prevRun[j] = length of the common run ending at a[i-1] and b[j]
	prevRun := make(map[int]int)
	for i, ra := range a {
		curRun := make(map[int]int)
		for _, j := range bIndex[ra] {
			run := prevRun[j-1] + 1
			curRun[j] = run
			if run > bestSize {
				bestSize = run
				bestI = i - run + 1
				bestJ = j - run + 1
			}
		}
		prevRun = curRun
	}
	return bestI, bestJ, bestSize
}
