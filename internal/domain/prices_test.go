package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestPricePoint_Valid(t *testing.T) {
	assert.True(t, PricePoint{Close: 10}.Valid())
	assert.False(t, PricePoint{Close: 0}.Valid())
	assert.False(t, PricePoint{Close: -1}.Valid())
	assert.False(t, PricePoint{Close: math.NaN()}.Valid())
	assert.False(t, PricePoint{Close: math.Inf(1)}.Valid())
}

func TestPriceHistory_Validate(t *testing.T) {
	ok := PriceHistory{Asset: "X", Points: []PricePoint{
		{Date: day(2025, 1, 2), Close: 1},
		{Date: day(2025, 1, 3), Close: 1},
	}}
	assert.NoError(t, ok.Validate())

	dup := PriceHistory{Asset: "X", Points: []PricePoint{
		{Date: day(2025, 1, 3), Close: 1},
		{Date: day(2025, 1, 3).Add(time.Hour), Close: 1},
	}}
	assert.Error(t, dup.Validate())

	unordered := PriceHistory{Asset: "X", Points: []PricePoint{
		{Date: day(2025, 1, 3), Close: 1},
		{Date: day(2025, 1, 2), Close: 1},
	}}
	assert.Error(t, unordered.Validate())
}

func TestOptimization_HasAllocation(t *testing.T) {
	assert.False(t, Optimization{Status: StatusNotApplicable}.HasAllocation())
	assert.False(t, Optimization{Status: StatusOptimized}.HasAllocation())
	o := Optimization{Status: StatusOptimized, Best: &Trial{}}
	assert.True(t, o.HasAllocation())
}
