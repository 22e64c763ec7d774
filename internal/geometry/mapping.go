package geometry

// NearestSector maps a sector of a ring with fromSectors segments onto the
// sector of a ring with toSectors segments whose centre is nearest in
// azimuth. Exact ties resolve toward the lower sector index. Both rings are
// assumed to share the same phi origin.
//
// The computation is done in integers so that ties are detected exactly:
// the target centre index is c = ((2s+1)*to - from) / (2*from), and the
// result is c rounded half down, wrapped into [0, to).
func NearestSector(sector, fromSectors, toSectors int) int {
	if fromSectors == toSectors {
		return wrap(sector, toSectors)
	}
	num := (2*sector+1)*toSectors - fromSectors
	den := 2 * fromSectors
	k := ceilDiv(2*num-den, 2*den)
	return wrap(k, toSectors)
}

// NeighbourSectors returns the sectors of the target ring adjacent to the
// given sector: the mapped sector and its two azimuthal neighbours, with
// wraparound and without duplicates.
func NeighbourSectors(sector, fromSectors, toSectors int) []int {
	m := NearestSector(sector, fromSectors, toSectors)
	out := make([]int, 0, 3)
	for _, s := range [...]int{m - 1, m, m + 1} {
		w := wrap(s, toSectors)
		dup := false
		for _, o := range out {
			if o == w {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, w)
		}
	}
	return out
}

func wrap(s, n int) int {
	s %= n
	if s < 0 {
		s += n
	}
	return s
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func ceilDiv(a, b int) int {
	return -floorDiv(-a, b)
}
