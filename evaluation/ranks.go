package evaluation

import "sort"

// Rank assigns 1-based ranks to xs, giving tied values their average rank.
func Rank(xs []float64) []float64 {
	n := len(xs)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return xs[idx[a]] < xs[idx[b]] })

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i + 1
		for j < n && xs[idx[j]] == xs[idx[i]] {
			j++
		}
		avg := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			ranks[idx[k]] = avg
		}
		i = j
	}
	return ranks
}

// TieSizes returns the size of every group of tied values with more than one member.
func TieSizes(xs []float64) []int {
	s := sortedCopy(xs)
	var out []int
	for i := 0; i < len(s); {
		j := i + 1
		for j < len(s) && s[j] == s[i] {
			j++
		}
		if j-i > 1 {
			out = append(out, j-i)
		}
		i = j
	}
	return out
}

// tieTerm returns sum(t^3 - t) over the tie groups of xs.
func tieTerm(xs []float64) float64 {
	var s float64
	for _, t := range TieSizes(xs) {
		ft := float64(t)
		s += ft*ft*ft - ft
	}
	return s
}
