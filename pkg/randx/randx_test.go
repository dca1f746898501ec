package randx

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveIsDeterministic(t *testing.T) {
	a := Derive(56, "animals")
	b := Derive(56, "animals")
	c := Derive(56, "owners")

	x, y, z := a.Uint64(), b.Uint64(), c.Uint64()
	assert.Equal(t, x, y)
	assert.NotEqual(t, x, z)
}

func TestUUIDIsVersion4(t *testing.T) {
	r := New(1)
	id, err := uuid.Parse(r.UUID())
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(4), id.Version())
	assert.NotEqual(t, r.UUID(), r.UUID())
}

func TestExactCountsRemainderToLargest(t *testing.T) {
	counts := ExactCounts([]float64{0.9, 0.01, 0.08, 0.01}, 250)
	assert.Equal(t, []int{226, 2, 20, 2}, counts)

	sum := 0
	for _, c := range ExactCounts([]float64{0.4, 0.15, 0.2, 0.15, 0.1}, 997) {
		sum += c
	}
	assert.Equal(t, 997, sum)
}

func TestAssignExactFrequencies(t *testing.T) {
	r := New(3)
	got := AssignExact(r, []string{"a", "b"}, []float64{0.7, 0.3}, 10)
	require.Len(t, got, 10)
	n := 0
	for _, v := range got {
		if v == "a" {
			n++
		}
	}
	assert.Equal(t, 7, n)
}

func TestDateBetweenInclusive(t *testing.T) {
	r := New(9)
	from := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 2)
	seen := map[time.Time]bool{}
	for range 200 {
		d := r.DateBetween(from, to)
		assert.False(t, d.Before(from))
		assert.False(t, d.After(to))
		seen[d] = true
	}
	assert.Len(t, seen, 3)
}

func TestSampleDistinct(t *testing.T) {
	r := New(4)
	xs := []int{1, 2, 3, 4, 5, 6}
	got := SampleDistinct(r, xs, 4)
	assert.Len(t, got, 4)
	assert.IsIncreasing(t, got)
	assert.Equal(t, xs, SampleDistinct(r, xs, 10))
}

func TestAlphaNumAndRound(t *testing.T) {
	assert.Regexp(t, `^[A-Z0-9]{10}$`, New(5).AlphaNum(10))
	assert.Equal(t, 3.14, Round(3.14159, 2))
}

func TestBetweenDegenerate(t *testing.T) {
	r := New(1)
	assert.Equal(t, 4, r.Between(4, 4))
	assert.Equal(t, 4, r.Between(4, 2))
	assert.Equal(t, 0, r.Below(0))
}

func TestWeightsSortedByKey(t *testing.T) {
	keys, w := Weights(map[string]float64{"sick_pet": 0.2, "annual_visit": 0.6, "injured_pet": 0.2})
	assert.Equal(t, []string{"annual_visit", "injured_pet", "sick_pet"}, keys)
	assert.Equal(t, []float64{0.6, 0.2, 0.2}, w)
}
