package cmd

import "strings"

// maxSuggestDistance is the largest edit distance still offered as a suggestion.
const maxSuggestDistance = 3

// levenshtein computes the Levenshtein edit distance between two strings.
func levenshtein(a, b string) int {
	if a == "" {
		return len(b)
	}
	if b == "" {
		return len(a)
	}

	row := make([]int, len(b)+1)
	for j := range row {
		row[j] = j
	}
	for i := 1; i <= len(a); i++ {
		prev := i - 1
		row[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			val := min(row[j]+1, row[j-1]+1, prev+cost)
			prev = row[j]
			row[j] = val
		}
	}
	return row[len(b)]
}

// closest returns the candidate nearest to input (case-insensitive), or ""
// when nothing is within maxSuggestDistance. normalize is applied to both
// sides before comparing.
func closest(input string, candidates []string, normalize func(string) string) string {
	input = strings.ToLower(normalize(input))
	if input == "" {
		return ""
	}
	bestDist := maxSuggestDistance + 1
	bestMatch := ""
	for _, c := range candidates {
		if d := levenshtein(input, strings.ToLower(normalize(c))); d < bestDist {
			bestDist = d
			bestMatch = c
		}
	}
	return bestMatch
}

func identity(s string) string { return s }

func trimDashes(s string) string { return strings.TrimLeft(s, "-") }

// suggestCommand finds the closest command name to the unknown input.
func suggestCommand(unknown string, commands []string) string {
	return closest(unknown, commands, identity)
}

// suggestFlag finds the closest flag name, ignoring leading dashes but
// returning the match with its prefix.
func suggestFlag(unknown string, flagNames []string) string {
	return closest(unknown, flagNames, trimDashes)
}

// suggestItemType finds the closest item type name for a --type typo.
func suggestItemType(unknown string, typeNames []string) string {
	return closest(unknown, typeNames, identity)
}
