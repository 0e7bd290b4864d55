package cone

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// solveHomography computes the 3x3 projective transform taking each from[i]
// to the corresponding to[i], as a row-major [9]float64 with h[8] fixed at 1.
// Four point correspondences give the standard 8x8 direct linear system.
func solveHomography(from, to [4][2]float64) ([9]float64, error) {
	var h [9]float64

	a := mat.NewDense(8, 8, nil)
	b := mat.NewVecDense(8, nil)
	for i := 0; i < 4; i++ {
		x, y := from[i][0], from[i][1]
		u, v := to[i][0], to[i][1]
		a.SetRow(2*i, []float64{x, y, 1, 0, 0, 0, -x * u, -y * u})
		a.SetRow(2*i+1, []float64{0, 0, 0, x, y, 1, -x * v, -y * v})
		b.SetVec(2*i, u)
		b.SetVec(2*i+1, v)
	}

	var sol mat.VecDense
	if err := sol.SolveVec(a, b); err != nil {
		return h, fmt.Errorf("cone: degenerate point correspondences: %w", err)
	}
	for i := 0; i < 8; i++ {
		h[i] = sol.AtVec(i)
	}
	h[8] = 1
	return h, nil
}

// applyHomography maps a point through a row-major 3x3 homography.
func applyHomography(h [9]float64, x, y float64) (float64, float64) {
	d := h[6]*x + h[7]*y + h[8]
	if d == 0 {
		return -1, -1
	}
	return (h[0]*x + h[1]*y + h[2]) / d, (h[3]*x + h[4]*y + h[5]) / d
}
