// Package radon finds the dominant streak angle in a block of a kymograph.
//
// Red blood cells moving along a vessel leave diagonal streaks in a
// line-scan image. Projecting the block along the streak direction piles
// every streak onto a few bins, which maximizes the variance of the
// projection. EstimateAngle searches 0..179 degrees in 1 degree steps, then
// refines around the best coarse angle in 0.25 degree steps.
//
// # Angle Convention
//
// An angle theta projects along the direction (pixel, line) = (sin, cos).
// A streak whose pixel position grows by tan(theta) per line has angle
// theta: 0 is a vertical streak (no motion) and 45 moves one pixel per
// line toward higher pixel indices.
//
// # Geometry
//
// Transform is the standard non-circular discrete Radon transform: the
// block is zero-padded to a square of side
// ceil(sqrt(2)*max(rows, cols)), rotated about the square's center with
// bilinear interpolation and summed along rows. The padding is never
// materialized; samples outside the block read as zero.
package radon
