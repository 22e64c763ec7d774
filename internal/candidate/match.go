package candidate

import (
	"fmt"
	"math"
)

// Tolerance bounds the angular distance between a candidate and a truth
// particle for the two to be considered the same.
type Tolerance struct {
	ThetaMrad float64
	PhiDeg    float64
}

// Close reports whether a candidate direction is within the tolerance of a
// truth direction. The azimuth difference wraps at 360 degrees.
func (tol Tolerance) Close(c Candidate, t Truth) bool {
	if c.Side != t.Side {
		return false
	}
	if math.Abs(c.ThetaMrad()-t.ThetaMrad()) > tol.ThetaMrad {
		return false
	}
	dphi := math.Mod(math.Abs(c.Phi-t.Phi), 360)
	if dphi > 180 {
		dphi = 360 - dphi
	}
	return dphi <= tol.PhiDeg
}

// Efficiency counts matched truth particles and unmatched candidates.
type Efficiency struct {
	Truth      int
	Found      int
	Candidates int
	Fakes      int
}

// Add accumulates o into e.
func (e *Efficiency) Add(o Efficiency) {
	e.Truth += o.Truth
	e.Found += o.Found
	e.Candidates += o.Candidates
	e.Fakes += o.Fakes
}

// Rate is the fraction of truth particles that were found.
func (e Efficiency) Rate() float64 {
	if e.Truth == 0 {
		return 0
	}
	return float64(e.Found) / float64(e.Truth)
}

// FakeRate is the fraction of candidates without a truth partner.
func (e Efficiency) FakeRate() float64 {
	if e.Candidates == 0 {
		return 0
	}
	return float64(e.Fakes) / float64(e.Candidates)
}

func (e Efficiency) String() string {
	return fmt.Sprintf("found %d/%d (%.1f%%), fakes %d/%d",
		e.Found, e.Truth, 100*e.Rate(), e.Fakes, e.Candidates)
}

// Match assigns each candidate to the first truth particle within tol and
// marks both. A truth particle may explain several candidates. Candidates
// and truth are updated in place.
func Match(cands []Candidate, truth []Truth, tol Tolerance) Efficiency {
	eff := Efficiency{Truth: len(truth), Candidates: len(cands)}
	for i := range cands {
		c := &cands[i]
		c.WasMatched = true
		c.IsReal = false
		for j := range truth {
			if tol.Close(*c, truth[j]) {
				c.IsReal = true
				truth[j].Found = true
				break
			}
		}
		if !c.IsReal {
			eff.Fakes++
		}
	}
	for _, t := range truth {
		if t.Found {
			eff.Found++
		}
	}
	return eff
}
