// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package pre

import (
	"math"
)

var sqrt2 = float32(math.Sqrt2)

// Check if coordinate is within [0, size-1], and if not, reflect out of bounds coordinates back into the value range
func reflect(size, x int) int {
	if x < 0 {
		return -x - 1
	}
	if x >= size {
		return 2*size - x - 1
	}
	return x
}

// Returns the definite integral of the gaussian function with midpoint mu and standard deviation sigma for input x
func GaussianDefiniteIntegral(mu, sigma, x float32) float32 {
	return 0.5 * (1 + float32(math.Erf(float64((x-mu)/(sqrt2*sigma)))))
}

// Generates a 1D gaussian kernel for the given sigma. Based on symbolic integration via error function.
// Kernel width adapts to sigma so the area under the truncated tails stays below 1%
func GaussianKernel1D(sigma float32) (kernel []float32) {
	mu := float32(0)

	// Find minimal kernel width for which the area under the curve left of the kernel is below the acceptable error
	acceptOut := float32(0.01)
	radius := 0
	for {
		val := GaussianDefiniteIntegral(mu, sigma, float32(-0.5)-float32(radius))
		if val < acceptOut {
			radius--
			break
		}
		radius++
	}
	return GaussianKernelSized(2*radius+1, sigma)
}

// Returns the default gaussian sigma for a kernel of the given fixed width
func SigmaForKernelWidth(width int) float32 {
	return 0.3*(float32(width-1)*0.5-1) + 0.8
}

// Generates a 1D gaussian kernel of the given fixed width, via symbolic integration like GaussianKernel1D.
// A non-positive sigma is derived from the width with SigmaForKernelWidth
func GaussianKernelSized(width int, sigma float32) (kernel []float32) {
	if sigma <= 0 {
		sigma = SigmaForKernelWidth(width)
	}
	mu := float32(0)
	radius := width / 2
	kernel = make([]float32, 2*radius+1)

	// Calculate left half of the kernel via symbolic integration
	sum := float32(0)
	lower := GaussianDefiniteIntegral(mu, sigma, float32(-0.5)-float32(radius))
	for i := 0; i <= radius; i++ {
		upper := GaussianDefiniteIntegral(mu, sigma, float32(-0.5)-float32(radius)+float32(i+1))
		delta := upper - lower
		kernel[i] = delta
		sum += delta
		lower = upper
	}

	// Mirror right half of the kernel to avoid numeric instability
	for i := 1; i <= radius; i++ {
		value := kernel[radius-i]
		kernel[radius+i] = value
		sum += value
	}

	// Normalize the sum of the kernel to 1, for dealing with the truncated part of the distribution.
	factor := 1.0 / sum
	for i := range kernel {
		kernel[i] *= factor
	}
	return kernel
}

// Convolve the given 2D frame provided by data and width with the given convolution kernel along the x axis, and store the result in res
func Convolve1DX(res, data []float32, width int, kernel []float32) {
	height := len(data) / width
	k := len(kernel) / 2
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			sum := float32(0.0)
			for i := -k; i <= k; i++ {
				x1 := reflect(width, x+i)
				sum += data[y*width+x1] * kernel[i+k]
			}
			res[y*width+x] = sum
		}
	}
}

// Convolve the given 2D frame provided by data and width with the given convolution kernel along the y axis, and store the result in res
func Convolve1DY(res, data []float32, width int, kernel []float32) {
	height := len(data) / width
	k := len(kernel) / 2
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			sum := float32(0.0)
			for i := -k; i <= k; i++ {
				y1 := reflect(height, y+i)
				sum += data[y1*width+x] * kernel[i+k]
			}
			res[y*width+x] = sum
		}
	}
}

// Generate a convolution kernel for a 2D gauss filter of given standard deviation, and apply it to the 2D frame given by data and width.
// Overwrites tmp and returns the result in res
func GaussFilter2D(res, tmp, data []float32, width int, sigma float32) {
	kernel := GaussianKernel1D(sigma)
	Convolve1DX(tmp, data, width, kernel)
	Convolve1DY(res, tmp, width, kernel)
}

// Apply a 2D gauss filter with fixed kernel width to the 2D frame given by data and width.
// Overwrites tmp and returns the result in res
func GaussFilterSized2D(res, tmp, data []float32, width int, kernelWidth int, sigma float32) {
	kernel := GaussianKernelSized(kernelWidth, sigma)
	Convolve1DX(tmp, data, width, kernel)
	Convolve1DY(res, tmp, width, kernel)
}

// Apply a moving-average box filter of the given size to the 2D frame given by data and width along the x axis,
// storing window means in res. Windows are centered with offsets in [-size/2, size-size/2-1], so even sizes lean
// one sample towards lower coordinates. Boundaries reflect. Uses a running sum per row, accumulated in float64
func BoxFilter1DX(res, data []float32, width int, size int) {
	height := len(data) / width
	lo, hi := -(size / 2), size-size/2-1
	factor := 1.0 / float64(size)
	for y := 0; y < height; y++ {
		row := data[y*width : y*width+width]
		sum := float64(0)
		for i := lo; i <= hi; i++ {
			sum += float64(row[reflect(width, i)])
		}
		res[y*width] = float32(sum * factor)
		for x := 1; x < width; x++ {
			sum += float64(row[reflect(width, x+hi)]) - float64(row[reflect(width, x-1+lo)])
			res[y*width+x] = float32(sum * factor)
		}
	}
}

// Apply a moving-average box filter of the given size to the 2D frame given by data and width along the y axis,
// storing window means in res. Same window and boundary conventions as BoxFilter1DX
func BoxFilter1DY(res, data []float32, width int, size int) {
	height := len(data) / width
	lo, hi := -(size / 2), size-size/2-1
	factor := 1.0 / float64(size)
	for x := 0; x < width; x++ {
		sum := float64(0)
		for i := lo; i <= hi; i++ {
			sum += float64(data[reflect(height, i)*width+x])
		}
		res[x] = float32(sum * factor)
		for y := 1; y < height; y++ {
			sum += float64(data[reflect(height, y+hi)*width+x]) - float64(data[reflect(height, y-1+lo)*width+x])
			res[y*width+x] = float32(sum * factor)
		}
	}
}

// Apply a 2D moving-average box filter of the given size to the 2D frame given by data and width.
// Separable into two 1D passes. Overwrites tmp and returns the result in res
func BoxFilter2D(res, tmp, data []float32, width int, size int) {
	BoxFilter1DX(tmp, data, width, size)
	BoxFilter1DY(res, tmp, width, size)
}
