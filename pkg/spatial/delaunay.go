package spatial

import "github.com/banchi-geo/banchi/pkg/address"

// Candidate pairs an address node with its geodesic distance from the
// query point, in meters.
type Candidate struct {
	Node address.Node
	Dist float64
}

// pContainedTriangle reports whether point p lies strictly inside the
// triangle (p0, p1, p2), in barycentric form.
func pContainedTriangle(p, p0, p1, p2 [2]float64) bool {
	area := -p1[1]*p2[0] + p0[1]*(-p1[0]+p2[0]) +
		p0[0]*(p1[1]-p2[1]) + p1[0]*p2[1]
	s := p0[1]*p2[0] - p0[0]*p2[1] + (p2[1]-p0[1])*p[0] + (p0[0]-p2[0])*p[1]
	t := p0[0]*p1[1] - p0[1]*p1[0] + (p0[1]-p1[1])*p[0] + (p1[0]-p0[0])*p[1]

	if area < 0 {
		area, s, t = -area, -s, -t
	}
	return 0 < s && s < area && 0 < t && t < area && 0 < area-s-t && area-s-t < area
}

// circumcircle returns the circumcenter of the triangle (p0, p1, p2)
// and the square of its radius.
func circumcircle(p0, p1, p2 [2]float64) (x, y, r2 float64) {
	xt := (p2[1]-p0[1])*(p1[0]*p1[0]-p0[0]*p0[0]+p1[1]*p1[1]-p0[1]*p0[1]) +
		(p0[1]-p1[1])*(p2[0]*p2[0]-p0[0]*p0[0]+p2[1]*p2[1]-p0[1]*p0[1])
	yt := (p0[0]-p2[0])*(p1[0]*p1[0]-p0[0]*p0[0]+p1[1]*p1[1]-p0[1]*p0[1]) +
		(p1[0]-p0[0])*(p2[0]*p2[0]-p0[0]*p0[0]+p2[1]*p2[1]-p0[1]*p0[1])
	c := 2 * ((p1[0]-p0[0])*(p2[1]-p0[1]) - (p1[1]-p0[1])*(p2[0]-p0[0]))

	x = xt / c
	y = yt / c
	r2 = (x-p0[0])*(x-p0[0]) + (y-p0[1])*(y-p0[1])
	return x, y, r2
}

// pContainedCircumcircle reports whether point p lies inside the
// circumcircle of the triangle (p0, p1, p2).
func pContainedCircumcircle(p, p0, p1, p2 [2]float64) bool {
	cx, cy, r2 := circumcircle(p0, p1, p2)
	pr2 := (p[0]-cx)*(p[0]-cx) + (p[1]-cy)*(p[1]-cy)
	return pr2 < r2
}

// selectTriangle picks the three candidates forming the smallest
// triangle that surrounds the query point, Delaunay style: starting
// from any surrounding triangle, a vertex is swapped for a candidate
// inside the current circumcircle until none remains. When no
// surrounding triangle exists the two nearest candidates are
// returned. nodes must be sorted by distance.
func selectTriangle(x, y float64, nodes []Candidate) []Candidate {
	kval := func(t [3]int) int {
		a, b, c := t[0], t[1], t[2]
		if a > b {
			a, b = b, a
		}
		if b > c {
			b, c = c, b
		}
		if a > b {
			a, b = b, a
		}
		return a*10000 + b*100 + c
	}
	side := func(abx, aby, apx, apy float64) float64 {
		return abx*apy - aby*apx
	}
	at := func(i int) [2]float64 {
		return [2]float64{float64(nodes[i].Node.X), float64(nodes[i].Node.Y)}
	}

	a := at(0)
	apx, apy := x-a[0], y-a[1]

	// Find a second vertex b off the line through the query and a.
	p1, sideP := -1, 0.0
	var abx, aby float64
	for i := 1; i < len(nodes)-2; i++ {
		b := at(i)
		abx, aby = b[0]-a[0], b[1]-a[1]
		sideP = side(abx, aby, apx, apy)
		if sideP > 1e-10 || sideP < -1e-10 {
			p1 = i
			break
		}
	}

	// Find a third vertex q so that triangle abq surrounds the query.
	triangle := [3]int{-1, -1, -1}
	found := false
	if p1 >= 0 {
		for p2 := p1 + 1; p2 < len(nodes); p2++ {
			q := at(p2)
			sideQ := side(abx, aby, q[0]-a[0], q[1]-a[1])
			if sideP*sideQ < 0 ||
				(sideP < 0 && sideQ > sideP) ||
				(sideP > 0 && sideQ < sideP) {
				continue
			}
			if pContainedTriangle([2]float64{x, y}, at(0), at(p1), at(p2)) {
				triangle = [3]int{0, p1, p2}
				found = true
				break
			}
		}
	}
	if !found {
		// No surrounding triangle: fall back to the two nearest.
		if len(nodes) > 2 {
			return nodes[:2]
		}
		return nodes
	}

	processed := map[int]bool{kval(triangle): true}
	for i := 0; i < len(nodes); {
		if i == triangle[0] || i == triangle[1] || i == triangle[2] {
			i++
			continue
		}
		if pContainedCircumcircle(at(i), at(triangle[0]), at(triangle[1]), at(triangle[2])) {
			swapped := false
			for j := 0; j < 3; j++ {
				tt := triangle
				tt[j] = i
				if processed[kval(tt)] {
					continue
				}
				if pContainedTriangle([2]float64{x, y}, at(tt[0]), at(tt[1]), at(tt[2])) {
					triangle = tt
					processed[kval(tt)] = true
					swapped = true
					break
				}
			}
			if swapped {
				i = 0
				continue
			}
		}
		i++
	}

	return []Candidate{nodes[triangle[0]], nodes[triangle[1]], nodes[triangle[2]]}
}
