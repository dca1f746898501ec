package refdata

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedTables(t *testing.T) {
	d, err := Embedded()
	require.NoError(t, err)

	assert.NotEmpty(t, d.Animals)
	assert.NotEmpty(t, d.Services)
	assert.NotEmpty(t, d.SurgeryTypes)

	for _, a := range d.Animals {
		_, ok := d.BreedWeights[a.Breed]
		assert.True(t, ok, "breed %s has a weight range", a.Breed)
		assert.Contains(t, []string{"M", "F"}, a.Gender)
	}

	var open, dated int
	for _, c := range d.Codes {
		if c.MarketYear == nil {
			open++
		} else {
			dated++
		}
	}
	assert.Positive(t, open)
	assert.Positive(t, dated)
	assert.Equal(t, "985112", d.Codes[0].Code)
}

func TestMissingColumn(t *testing.T) {
	fsys := fstest.MapFS{
		FileAnimals: {Data: []byte("species,breed,gender\ndog,Beagle,M\n")},
	}
	_, err := Load(fsys)
	var mc *MissingColumnError
	require.ErrorAs(t, err, &mc)
	assert.Equal(t, "name", mc.Column)
	assert.Equal(t, FileAnimals, mc.Relation)
}

func TestLoadDirFallsBackToEmbedded(t *testing.T) {
	d, err := LoadDir("")
	require.NoError(t, err)
	assert.NotEmpty(t, d.ReasonServices)
}
