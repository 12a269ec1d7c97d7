package flowline

import "math"

// Affine matrices are stored as [a, b, c, d, tx, ty]:
//
//	| a  c  tx |
//	| b  d  ty |
//	| 0  0   1 |

// identityTransform is the identity affine matrix.
var identityTransform = [6]float64{1, 0, 0, 1, 0, 0}

// multiplyAffine multiplies two 2D affine matrices: result = parent * child.
func multiplyAffine(p, c [6]float64) [6]float64 {
	return [6]float64{
		p[0]*c[0] + p[2]*c[1],
		p[1]*c[0] + p[3]*c[1],
		p[0]*c[2] + p[2]*c[3],
		p[1]*c[2] + p[3]*c[3],
		p[0]*c[4] + p[2]*c[5] + p[4],
		p[1]*c[4] + p[3]*c[5] + p[5],
	}
}

// invertAffine computes the inverse of a 2D affine matrix.
// Returns the identity matrix if the matrix is singular (determinant ≈ 0).
func invertAffine(m [6]float64) [6]float64 {
	det := m[0]*m[3] - m[2]*m[1]
	if det > -1e-12 && det < 1e-12 {
		return identityTransform
	}
	invDet := 1.0 / det
	a := m[3] * invDet
	b := -m[1] * invDet
	c := -m[2] * invDet
	d := m[0] * invDet
	return [6]float64{
		a, b, c, d,
		-(a*m[4] + c*m[5]),
		-(b*m[4] + d*m[5]),
	}
}

// transformPoint applies an affine matrix to a point.
func transformPoint(m [6]float64, x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

// transformVector applies the linear part of an affine matrix to a vector.
func transformVector(m [6]float64, x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y, m[1]*x + m[3]*y
}

// translateAffine returns m * Translate(x, y).
func translateAffine(m [6]float64, x, y float64) [6]float64 {
	return multiplyAffine(m, [6]float64{1, 0, 0, 1, x, y})
}

// rotateAffine returns m * Rotate(rad). Positive angles turn +X toward +Y.
func rotateAffine(m [6]float64, rad float64) [6]float64 {
	sin, cos := math.Sincos(rad)
	return multiplyAffine(m, [6]float64{cos, sin, -sin, cos, 0, 0})
}

// scaleAffine returns m * Scale(sx, sy).
func scaleAffine(m [6]float64, sx, sy float64) [6]float64 {
	return multiplyAffine(m, [6]float64{sx, 0, 0, sy, 0, 0})
}

// Mat3 is a column-major 3x3 matrix as consumed by GLSL mat3 uniforms.
type Mat3 [9]float32

// affineMat3 converts an affine matrix to a column-major Mat3.
func affineMat3(m [6]float64) Mat3 {
	return Mat3{
		float32(m[0]), float32(m[1]), 0,
		float32(m[2]), float32(m[3]), 0,
		float32(m[4]), float32(m[5]), 1,
	}
}

// Affine returns the affine part of a column-major Mat3. The projective row
// is assumed to be (0, 0, 1).
func (m Mat3) Affine() [6]float64 {
	return [6]float64{
		float64(m[0]), float64(m[1]),
		float64(m[3]), float64(m[4]),
		float64(m[6]), float64(m[7]),
	}
}

// Apply transforms the homogeneous point (x, y, w).
func (m Mat3) Apply(x, y, w float64) (float64, float64) {
	return float64(m[0])*x + float64(m[3])*y + float64(m[6])*w,
		float64(m[1])*x + float64(m[4])*y + float64(m[7])*w
}
